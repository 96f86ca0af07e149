package main

import "github.com/AngelCh415/adforecast/cmd/adforecast/cmd"

func main() {
	cmd.Execute()
}
