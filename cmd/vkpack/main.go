// Command vkpack builds the distribution packages for the Valkey
// Insight desktop application: deb, rpm, flatpak and the Windows NSIS
// installer.
package main

func main() {
	Execute()
}
