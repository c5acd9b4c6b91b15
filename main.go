// Package main provides the linkscout CLI.
//
// linkscout audits web pages for broken links the way a visitor meets
// them: it renders each page, waits for it to settle, opens every modal
// dialog, and checks each reachable link.
//
// Usage:
//
//	linkscout audit https://example.com
//	linkscout audit --max-pages 50 --markdown -o report.md https://example.com
//	linkscout history
package main

func main() {
	Execute()
}
