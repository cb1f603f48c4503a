// Package main is the entry point for warpmodel.
package main

func main() {
	Execute()
}
