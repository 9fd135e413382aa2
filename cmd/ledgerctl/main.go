package main

import "github.com/ledgerdesk/ledgerdesk/cmd/ledgerctl/cli"

func main() {
	cli.Execute()
}
