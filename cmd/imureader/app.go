package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aldas/go-imucan-client"
	"github.com/aldas/go-imucan-client/candump"
	"github.com/aldas/go-imucan-client/internal/config"
	"github.com/aldas/go-imucan-client/mqtt"
	"github.com/aldas/go-imucan-client/slcan"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// serialReadTimeout is duration that serial port Read call is allowed to block
const serialReadTimeout = 50 * time.Millisecond

// reportSetters are functions that report period is sent to when configured
var reportSetters = []imucan.Function{
	imucan.FunctionAngleSet,
	imucan.FunctionAngleSpeedSet,
	imucan.FunctionAngleAccSet,
	imucan.FunctionQuaternionSet,
}

type app struct {
	opt    config.Opt
	stdout io.Writer
	logger log.FieldLogger

	// openTransport is replaced in tests
	openTransport func(opt config.Opt, logger log.FieldLogger) (imucan.Transport, error)
	// newPublisher is replaced in tests
	newPublisher func(opt config.MQTTOpt, logger log.FieldLogger) publisher
}

type publisher interface {
	imucan.Reporter
	Connect(ctx context.Context) error
	Close() error
}

func newApp(opt config.Opt, stdout io.Writer) *app {
	return &app{
		opt:           opt,
		stdout:        stdout,
		logger:        log.StandardLogger(),
		openTransport: openTransport,
		newPublisher:  newMQTTPublisher,
	}
}

func openTransport(opt config.Opt, logger log.FieldLogger) (imucan.Transport, error) {
	var transport imucan.Transport
	switch opt.Transport.Kind {
	case config.TransportSocketCAN:
		t, err := newSocketCANTransport(opt)
		if err != nil {
			return nil, err
		}
		transport = t
	case config.TransportSLCAN:
		port, err := serial.OpenPort(&serial.Config{
			Name:        opt.Transport.Device,
			Baud:        opt.Transport.Baud,
			ReadTimeout: serialReadTimeout,
			Size:        8,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial device: %w", err)
		}
		transport = slcan.NewDevice(port, slcan.Config{
			Bitrate: opt.Transport.Bitrate,
			Logger:  logger,
		})
	case config.TransportCandump:
		f, err := os.Open(opt.Transport.Device)
		if err != nil {
			return nil, fmt.Errorf("failed to open candump log: %w", err)
		}
		transport = candump.NewReader(f, candump.Config{Logger: logger})
	default:
		return nil, fmt.Errorf("unknown transport kind: %v", opt.Transport.Kind)
	}

	if opt.Output.RawFrames {
		iface := opt.Transport.Interface
		transport = imucan.NewLoggedTransport(transport, logger, imucan.LogAll, func(frame imucan.RawFrame) string {
			return candump.MarshalFrame(frame, iface)
		})
	}
	return transport, nil
}

func newMQTTPublisher(opt config.MQTTOpt, logger log.FieldLogger) publisher {
	return mqtt.NewPublisher(mqtt.Config{
		Broker:         opt.Broker,
		ClientID:       opt.ClientID,
		Topic:          opt.Topic,
		PerDeviceTopic: opt.PerDeviceTopic,
		Logger:         logger,
	})
}

func (a *app) isReadOnly() bool {
	return a.opt.Transport.Kind == config.TransportCandump
}

// session opens and initializes transport and calls fn with it. Transport is always closed. Interrupting session
// (cancelled context) is not an error.
func (a *app) session(fn func(transport imucan.Transport) error) error {
	transport, err := a.openTransport(a.opt, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close transport")
		}
	}()

	fmt.Fprintf(a.stdout, "# Initializing %v transport\n", a.opt.Transport.Kind)
	if err := transport.Initialize(); err != nil {
		return &imucan.TransportError{Op: "initialize", Err: err}
	}
	if err := fn(transport); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *app) resolveDevice(ctx context.Context, transport imucan.Transport) (imucan.Device, error) {
	selector := a.opt.Selector()
	if _, ok := selector.Resolve(); !ok {
		fmt.Fprintf(a.stdout, "# Capturing IMU device from the bus\n")
	}
	device, err := imucan.ResolveDevice(ctx, transport, selector, a.opt.CaptureConfig(a.logger))
	if err != nil {
		return imucan.Device{}, err
	}
	fmt.Fprintf(a.stdout, "# Using IMU device: %v\n", device)
	return device, nil
}

func (a *app) capture(ctx context.Context) error {
	return a.session(func(transport imucan.Transport) error {
		device, err := imucan.CaptureDevice(ctx, transport, a.opt.CaptureConfig(a.logger))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%d %d\n", device.Model, device.Number)
		return nil
	})
}

func (a *app) enable(ctx context.Context) error {
	return a.control(ctx, "enable", (*imucan.Controller).Enable)
}

func (a *app) disable(ctx context.Context) error {
	return a.control(ctx, "disable", (*imucan.Controller).Disable)
}

type controlFunc func(c *imucan.Controller, ctx context.Context, device imucan.Device) error

func (a *app) control(ctx context.Context, name string, send controlFunc) error {
	if a.isReadOnly() {
		return candump.ErrReadOnly
	}
	return a.session(func(transport imucan.Transport) error {
		device, err := a.resolveDevice(ctx, transport)
		if err != nil {
			return err
		}
		if err := send(imucan.NewController(transport), ctx, device); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "# Sent %v frame to IMU device: %v\n", name, device)
		return nil
	})
}

func (a *app) reporters(ctx context.Context) (imucan.MultiReporter, func(), error) {
	reporters := imucan.MultiReporter{}
	switch a.opt.Output.Format {
	case config.FormatText:
		reporters = append(reporters, imucan.NewTextReporter(a.stdout))
	case config.FormatJSON:
		reporters = append(reporters, imucan.NewJSONReporter(a.stdout))
	}

	cleanup := func() {}
	if a.opt.MQTT.Broker != "" {
		p := a.newPublisher(a.opt.MQTT, a.logger)
		if err := p.Connect(ctx); err != nil {
			return nil, nil, err
		}
		reporters = append(reporters, p)
		cleanup = func() { _ = p.Close() }
	}
	return reporters, cleanup, nil
}

func (a *app) read(ctx context.Context) error {
	reporter, cleanup, err := a.reporters(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return a.session(func(transport imucan.Transport) error {
		device, err := a.resolveDevice(ctx, transport)
		if err != nil {
			return err
		}

		if !a.isReadOnly() {
			controller := imucan.NewController(transport)
			if err := controller.Enable(ctx, device); err != nil {
				return err
			}
			if period := a.opt.Device.ReportPeriod; period > 0 {
				for _, fn := range reportSetters {
					if err := controller.SetReportPeriod(ctx, device, fn, period); err != nil {
						return err
					}
				}
			}
		}

		stream := imucan.NewStream(transport, imucan.StreamConfig{
			Device:          device,
			AcceptAnyDevice: a.opt.Device.AcceptAnyDevice,
			Reporter:        reporter,
			Logger:          a.logger,
		})
		fmt.Fprintf(a.stdout, "# Starting to read IMU device: %v\n", device)
		err = stream.Run(ctx)

		stats := stream.Stats()
		a.logger.WithFields(log.Fields{
			"frames":             stats.Frames,
			"applied":            stats.Applied,
			"unknown":            stats.Unknown,
			"invalid_identifier": stats.InvalidIdentifier,
			"other_device":       stats.OtherDevice,
			"malformed_payload":  stats.MalformedPayload,
		}).Info("stream stopped")

		if a.isReadOnly() && errors.Is(err, io.EOF) {
			fmt.Fprintf(a.stdout, "# End of candump log\n")
			return nil
		}
		return err
	})
}
