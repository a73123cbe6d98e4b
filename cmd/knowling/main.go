// Package main is the Knowling CLI entry point.
package main

func main() {
	Execute()
}
