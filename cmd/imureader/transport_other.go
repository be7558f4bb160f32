//go:build !linux

package main

import (
	"errors"

	"github.com/aldas/go-imucan-client"
	"github.com/aldas/go-imucan-client/internal/config"
)

func newSocketCANTransport(_ config.Opt) (imucan.Transport, error) {
	return nil, errors.New("socketcan transport is only supported on linux")
}
