// Command wakeup runs the wake-up service: the REST API, the background
// worker that delivers due alarms, and schema migrations.
package main

import "github.com/wakeup-hub/wakeup-hub/cmd/wakeup/cmd"

func main() {
	cmd.Execute()
}
