// Package config provides configuration loading for reactor processes.
//
// Configuration is read from reactor.json and then overlaid with
// REACTOR_* environment variables, so deployments can override single
// values without editing the file.
//
// # Configuration File Structure
//
//	{
//	  "sweepInterval": "1s",
//	  "evalTimeout": "250ms",
//	  "programCacheSize": 512,
//	  "inspector": {
//	    "addr": "127.0.0.1:7070"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Environment
//
//	REACTOR_SWEEP_INTERVAL      overrides sweepInterval
//	REACTOR_EVAL_TIMEOUT        overrides evalTimeout
//	REACTOR_PROGRAM_CACHE_SIZE  overrides programCacheSize
//	REACTOR_INSPECTOR_ADDR      overrides inspector.addr
//	REACTOR_LOG_LEVEL           overrides log.level
//	REACTOR_LOG_FORMAT          overrides log.format
//
// # Usage
//
//	cfg, err := config.Resolve("reactor.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	logger := cfg.Logger(os.Stderr)
package config
