//go:build linux

package main

import (
	"github.com/aldas/go-imucan-client"
	"github.com/aldas/go-imucan-client/internal/config"
	"github.com/aldas/go-imucan-client/socketcan"
)

func newSocketCANTransport(opt config.Opt) (imucan.Transport, error) {
	return socketcan.NewDevice(socketcan.DeviceConfig{
		InterfaceName: opt.Transport.Interface,
		IMUFilterOnly: opt.Transport.IMUFilter,
	}), nil
}
