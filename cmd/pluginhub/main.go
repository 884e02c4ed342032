// Command pluginhub runs the plugin lifecycle service and its admin tasks.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
