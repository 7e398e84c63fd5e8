// Command pmsim runs power management instances described by a YAML file,
// either on a virtual timeline or against the wall clock with a monitor.
package main

func main() {
	Execute()
}
