package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"etldeploy/cmd"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		flags := flag.NewFlagSet("run", flag.ExitOnError)
		configPath := flags.String("config", "deploy.yml", "path to the deploy config")
		instance := flags.Int("instance", 0, "instance number to provision (1..max_instance)")
		flags.Parse(os.Args[2:])

		os.Exit(cmd.Run(*configPath, *instance))

	case "serve":
		flags := flag.NewFlagSet("serve", flag.ExitOnError)
		configPath := flags.String("config", "deploy.yml", "path to the deploy config")
		flags.Parse(os.Args[2:])

		if err := cmd.Serve(*configPath); err != nil {
			log.Fatalf("Server failed: %v", err)
		}

	case "smoke":
		flags := flag.NewFlagSet("smoke", flag.ExitOnError)
		settingsPath := flags.String("settings", "settings.json", "path to the rendered settings file")
		flags.Parse(os.Args[2:])

		os.Exit(cmd.Smoke(*settingsPath))

	default:
		fmt.Println("Unknown command:", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: etldeploy <run|serve|smoke> [flags]")
	fmt.Println("  run    -instance N [-config deploy.yml]   provision and smoke-test one instance")
	fmt.Println("  serve  [-config deploy.yml]               start the HTTP API and scheduler")
	fmt.Println("  smoke  [-settings settings.json]          verify a rendered settings file")
}
