// Package config loads the process configuration: YAML file layered over
// built-in defaults, with LOGVAULT_* environment variables taking final
// precedence.
//
// Example:
//
//	cfg, err := config.Load("/etc/logvault.yaml")
//	if err != nil {
//	    return err
//	}
//	eng, _ := engine.Open(engine.Options{Config: cfg})
//	defer eng.Close()
package config
