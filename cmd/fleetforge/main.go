// Command fleetforge runs the fleet orchestration API and its tooling.
package main

func main() {
	Execute()
}
