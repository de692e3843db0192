package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var logFile *os.File

// SetupLogger 日志写入文件，标准输出只用于输出调试消息
func SetupLogger(logPath string, level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	if logPath == "" {
		logrus.SetOutput(os.Stderr)
		return
	}
	if err := os.MkdirAll(filepath.Dir(logPath), os.ModePerm); err != nil {
		logrus.SetOutput(os.Stderr)
		return
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logrus.SetOutput(os.Stderr)
		logrus.Warnf("open log file fail, err = %v", err)
		return
	}
	logFile = file
	logrus.SetOutput(logFile)
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
