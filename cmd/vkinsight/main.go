// Command vkinsight is the headless companion to the Valkey Insight
// desktop application: it speaks RESP3 to a Valkey server and exposes
// the browsing, insights and documentation features on the command
// line.
package main

func main() {
	Execute()
}
