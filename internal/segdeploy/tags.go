package segdeploy

// Tag key constants for deployment metadata applied to all created
// platform resources.
const (
	TagKeyProject     = "segdeploy:project"
	TagKeyEnvironment = "segdeploy:environment"
	TagKeyConfigID    = "segdeploy:config-id"
	TagKeyManagedBy   = "segdeploy:managed-by"
)

// managedByValue identifies resources created by this tool.
const managedByValue = "segdeploy"

// buildResourceTags merges default deployment metadata tags with
// user-defined tags from the config. User-defined tags take precedence
// over defaults when keys overlap.
func buildResourceTags(project, environment string, userTags map[string]string) map[string]string {
	tags := make(map[string]string, len(userTags)+3)

	tags[TagKeyProject] = project
	tags[TagKeyEnvironment] = environment
	tags[TagKeyManagedBy] = managedByValue

	for k, v := range userTags {
		tags[k] = v
	}

	return tags
}

// tagsWithConfigID returns a copy of the base resource tags with the
// config-id tag set. If configID is empty the base tags are returned
// unmodified.
func tagsWithConfigID(baseTags map[string]string, configID string) map[string]string {
	if configID == "" || len(baseTags) == 0 {
		return baseTags
	}
	tags := make(map[string]string, len(baseTags)+1)
	for k, v := range baseTags {
		tags[k] = v
	}
	tags[TagKeyConfigID] = configID
	return tags
}
