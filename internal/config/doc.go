// Package config reads the server configuration of the splitrender CLI.
//
// The configuration lives in splitrender.yaml, splitrender.yml or
// splitrender.json next to the working directory. Every field is optional.
//
// # Configuration File Structure
//
//	addr: ":3000"
//	build:
//	  location: ./dist            # or s3://bucket/prefix
//	  publicPath: /static/
//	  staticDir: ./dist/static
//	render:
//	  maxRounds: 10
//	  roundWait: 200ms
//	  requestTimeout: 10s
//	log:
//	  level: info
//	  format: json
//	metrics:
//	  enabled: true
//	  path: /metrics
//	  namespace: splitrender
//	settings:
//	  apiURL: /api
//	  sentryDSN: https://example.invalid/1
//	private:
//	  - sentryDSN
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Addr)
package config
