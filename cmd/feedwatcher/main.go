package main

import "feedwatcher/internal/cli"

func main() {
	cli.Execute()
}
