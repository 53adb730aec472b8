package main

import "github.com/limecash/lime-e2e/pkg/cli"

func main() {
	cli.Execute()
}
