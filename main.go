package main

import "github.com/frahmantamala/invoice-payments/cmd"

func main() {
	cmd.Execute()
}
