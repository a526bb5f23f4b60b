// Package logger provides structured logging for querykit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers. The query and stream engines log through
// component loggers obtained from Get.
//
// # Configuration
//
//	logger:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("query")
//	log.Info("attempt finished", logger.Fields("attempt", 2, "status", 503))
package logger
