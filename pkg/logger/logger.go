package logger

import (
	"fmt"

	"go.uber.org/zap"
)

var base *zap.Logger

var serviceName = "default"

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init создаёт глобальный zap-логгер. Вызывается один раз из main.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	base = l
	return nil
}

func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

func with(fields ...zap.Field) *zap.Logger {
	if base == nil {
		// логгер не сконфигурирован — не падаем, пишем в dev-режиме
		base, _ = zap.NewDevelopment()
	}
	return base.With(append(fields, zap.String("service", serviceName))...)
}

func Info(format string, args ...interface{}) {
	with().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	with().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	with().Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	with().Fatal(fmt.Sprintf(format, args...))
}
