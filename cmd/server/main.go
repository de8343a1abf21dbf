package main

import "supapool/server"

func main() {
	server.Main()
}
