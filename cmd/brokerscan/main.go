// Package main provides the entry point for the brokerscan CLI.
//
// brokerscan searches people-search ("data broker") sites for listings of a
// named person and produces a report plus an opt-out checklist.
//
// Usage:
//
//	brokerscan discover --name "Jane Doe" --city Austin --state TX
//	brokerscan report --name "Jane Doe" --city Austin --state TX
//
// See --help for all available options.
package main

func main() {
	Execute()
}
