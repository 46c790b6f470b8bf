package main

import "vxlancni/cmd"

func main() {
	cmd.Execute()
}
