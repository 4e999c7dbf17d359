package main

import "patient-monitor/internal/cli"

func main() {
	cli.Execute()
}
