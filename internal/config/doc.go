// Package config loads kiln.toml, the project configuration used by
// 'kiln serve'.
//
// # Configuration File Structure
//
//	[runtime]
//	max_flush_cascade = 100
//
//	[live]
//	addr = ":8080"
//	title = "Counter"
//	resume_window = "30s"
//	read_timeout = "60s"
//
//	[components]
//	dir = "components"
//	root = "app"
//	target = "body"
//
//	[s3]
//	bucket = "my-components"
//	prefix = "prod/"
//	region = "eu-west-1"
//
//	[telemetry]
//	metrics = true
//	tracing = false
//
//	[log]
//	level = "info"
//	format = "console"
//
// Every key is optional. A .env file next to kiln.toml is loaded into the
// environment first, then KILN_* variables override file values.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Live.Addr)
package config
