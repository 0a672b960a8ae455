package main

import "github.com/frahmantamala/payment-portal/cmd"

func main() {
	cmd.Execute()
}
