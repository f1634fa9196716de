package main

import (
	"github.com/sirupsen/logrus"

	"github.com/foliva/folivafy/internal/logger"
)

func loggerInit(level logrus.Level) {
	logger.Init(level)
}
