package segdeploy

// Version is the segdeploy release version, embedded in deployment
// records and CLI output.
const Version = "0.3.0"
