// Command segdeploy manages the customer-segmentation ML delivery
// workflow on AWS SageMaker: registering the training pipeline, starting
// executions, rolling trained models onto the serving endpoint, and smoke
// testing the result.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "segdeploy: %v\n", err)
		os.Exit(1)
	}
}
