package main

import "github.com/edgeflare/pgmock/cmd/pgmock"

func main() {
	pgmock.Main()
}
