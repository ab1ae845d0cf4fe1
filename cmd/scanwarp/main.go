package main

import "github.com/MeKo-Tech/scanwarp/cmd/scanwarp/cmd"

func main() {
	cmd.Execute()
}
