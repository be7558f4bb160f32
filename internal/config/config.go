package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aldas/go-imucan-client"
	"github.com/aldas/go-imucan-client/slcan"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const DefaultAppName = "imucan"
const DefaultConfigName = "config"
const DefaultEnvPrefix = "IMUCAN"

const (
	TransportSocketCAN = "socketcan"
	TransportSLCAN     = "slcan"
	TransportCandump   = "candump"

	FormatText = "text"
	FormatJSON = "json"
	FormatNone = "none"
)

const (
	DefaultTransport      = TransportSocketCAN
	DefaultInterface      = "can0"
	DefaultSerialDevice   = "/dev/ttyACM0"
	DefaultBaud           = 115200
	DefaultBitrate        = 500_000
	DefaultCaptureTimeout = 10 * time.Second
	DefaultFormat         = FormatText
	DefaultMQTTTopic      = "imucan/state"
	DefaultMQTTClientID   = "imucan-reader"

	// Unset marks model/number that must be captured from the bus
	Unset = -1
)

var userHomeDir, _ = os.UserHomeDir()
var DefaultConfig = path.Join(userHomeDir, ".config/"+DefaultAppName+"/"+DefaultConfigName+".yaml")
var DefaultConfigSearchPath0 = path.Join(userHomeDir, ".config", DefaultAppName)

const DefaultConfigSearchPath1 = "/etc/" + DefaultAppName
const DefaultConfigSearchPath2 = "./"

type TransportOpt struct {
	// Kind is one of: socketcan, slcan, candump
	Kind string `yaml:"kind" mapstructure:"kind"`
	// Interface is SocketCAN interface name. Also used as interface name of logged raw frames
	Interface string `yaml:"interface" mapstructure:"interface"`
	// Device is serial port (slcan) or log file path (candump)
	Device    string `yaml:"device" mapstructure:"device"`
	Baud      int    `yaml:"baud" mapstructure:"baud"`
	Bitrate   int    `yaml:"bitrate" mapstructure:"bitrate"`
	IMUFilter bool   `yaml:"imu_filter" mapstructure:"imu_filter"`
}

type DeviceOpt struct {
	// Model and Number -1 means that value is captured from the bus
	Model  int `yaml:"model" mapstructure:"model"`
	Number int `yaml:"number" mapstructure:"number"`
	// AcceptAnyDevice applies frames of all IMUs on the bus to the same state
	AcceptAnyDevice bool `yaml:"accept_any_device" mapstructure:"accept_any_device"`
	// ReportPeriod is sent to device for all reports after enabling. 0 leaves device settings as they are
	ReportPeriod time.Duration `yaml:"report_period" mapstructure:"report_period"`
}

type CaptureOpt struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxFrames int           `yaml:"max_frames" mapstructure:"max_frames"`
}

type OutputOpt struct {
	// Format is one of: text, json, none
	Format string `yaml:"format" mapstructure:"format"`
	// RawFrames logs every read/written frame in candump format
	RawFrames bool `yaml:"raw_frames" mapstructure:"raw_frames"`
}

type MQTTOpt struct {
	// Broker empty disables MQTT publishing
	Broker         string `yaml:"broker" mapstructure:"broker"`
	Topic          string `yaml:"topic" mapstructure:"topic"`
	ClientID       string `yaml:"client_id" mapstructure:"client_id"`
	PerDeviceTopic bool   `yaml:"per_device_topic" mapstructure:"per_device_topic"`
}

type Opt struct {
	Transport TransportOpt `yaml:"transport" mapstructure:"transport"`
	Device    DeviceOpt    `yaml:"device" mapstructure:"device"`
	Capture   CaptureOpt   `yaml:"capture" mapstructure:"capture"`
	Output    OutputOpt    `yaml:"output" mapstructure:"output"`
	MQTT      MQTTOpt      `yaml:"mqtt" mapstructure:"mqtt"`
	Debug     bool         `yaml:"debug" mapstructure:"debug"`
}

type Desc struct {
	Opt   Opt
	Viper *viper.Viper
}

func NewDesc() Desc {
	return Desc{
		Opt:   NewOpt(),
		Viper: nil,
	}
}

func NewOpt() Opt {
	return Opt{
		Transport: TransportOpt{
			Kind:      DefaultTransport,
			Interface: DefaultInterface,
			Device:    DefaultSerialDevice,
			Baud:      DefaultBaud,
			Bitrate:   DefaultBitrate,
		},
		Device: DeviceOpt{
			Model:  Unset,
			Number: Unset,
		},
		Capture: CaptureOpt{
			Timeout: DefaultCaptureTimeout,
		},
		Output: OutputOpt{
			Format: DefaultFormat,
		},
		MQTT: MQTTOpt{
			Topic:    DefaultMQTTTopic,
			ClientID: DefaultMQTTClientID,
		},
		Debug: false,
	}
}

func setDefaults(vipCfg *viper.Viper) {
	vipCfg.SetDefault("transport.kind", DefaultTransport)
	vipCfg.SetDefault("transport.interface", DefaultInterface)
	vipCfg.SetDefault("transport.device", DefaultSerialDevice)
	vipCfg.SetDefault("transport.baud", DefaultBaud)
	vipCfg.SetDefault("transport.bitrate", DefaultBitrate)
	vipCfg.SetDefault("transport.imu_filter", false)
	vipCfg.SetDefault("device.model", Unset)
	vipCfg.SetDefault("device.number", Unset)
	vipCfg.SetDefault("device.accept_any_device", false)
	vipCfg.SetDefault("device.report_period", time.Duration(0))
	vipCfg.SetDefault("capture.timeout", DefaultCaptureTimeout)
	vipCfg.SetDefault("capture.max_frames", 0)
	vipCfg.SetDefault("output.format", DefaultFormat)
	vipCfg.SetDefault("output.raw_frames", false)
	vipCfg.SetDefault("mqtt.broker", "")
	vipCfg.SetDefault("mqtt.topic", DefaultMQTTTopic)
	vipCfg.SetDefault("mqtt.client_id", DefaultMQTTClientID)
	vipCfg.SetDefault("mqtt.per_device_topic", false)
	vipCfg.SetDefault("debug", false)
}

// AddFlags registers command line flags that override configuration file values
func AddFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "configuration file path")
	flags.StringP("transport", "t", DefaultTransport, "transport kind (socketcan, slcan, candump)")
	flags.StringP("interface", "i", DefaultInterface, "SocketCAN interface name")
	flags.StringP("device", "d", DefaultSerialDevice, "serial device path (slcan) or log file path (candump)")
	flags.Int("baud", DefaultBaud, "serial device baud rate")
	flags.Int("bitrate", DefaultBitrate, "CAN bus bitrate set to SLCAN adapter, 0 leaves adapter setting unchanged")
	flags.Int("model", Unset, "IMU model, -1 captures model from the bus")
	flags.Int("number", Unset, "IMU number, -1 captures number from the bus")
	flags.Duration("capture-timeout", DefaultCaptureTimeout, "how long to wait for IMU frame when capturing device, 0 waits forever")
	flags.StringP("format", "f", DefaultFormat, "state output format (text, json, none)")
	flags.Bool("raw", false, "log every read and written frame")
	flags.String("mqtt-broker", "", "MQTT broker URL, empty disables publishing. Example: tcp://127.0.0.1:1883")
	flags.String("mqtt-topic", DefaultMQTTTopic, "MQTT topic for state updates")
	flags.Bool("debug", false, "toggle debug logging")
}

// flagBindings maps configuration keys to command line flag names
var flagBindings = map[string]string{
	"transport.kind":      "transport",
	"transport.interface": "interface",
	"transport.device":    "device",
	"transport.baud":      "baud",
	"transport.bitrate":   "bitrate",
	"device.model":        "model",
	"device.number":       "number",
	"capture.timeout":     "capture-timeout",
	"output.format":       "format",
	"output.raw_frames":   "raw",
	"mqtt.broker":         "mqtt-broker",
	"mqtt.topic":          "mqtt-topic",
	"debug":               "debug",
}

// Parse reads configuration by the following order: config file (--config flag, IMUCAN_CONFIG env or search paths),
// environment variables, command line flags.
func (o *Desc) Parse(cmd *cobra.Command) error {
	vipCfg := viper.New()
	setDefaults(vipCfg)

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else {
		configFileEnv := os.Getenv(DefaultEnvPrefix + "_CONFIG")
		if configFileEnv != "" {
			vipCfg.SetConfigFile(configFileEnv)
		} else {
			vipCfg.SetConfigName(DefaultConfigName)
			vipCfg.SetConfigType("yaml")
			vipCfg.AddConfigPath(DefaultConfigSearchPath0)
			vipCfg.AddConfigPath(DefaultConfigSearchPath1)
			vipCfg.AddConfigPath(DefaultConfigSearchPath2)
		}
	}

	vipCfg.SetEnvPrefix(DefaultEnvPrefix)
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	for key, flagName := range flagBindings {
		if flag := cmd.Flags().Lookup(flagName); flag != nil {
			_ = vipCfg.BindPFlag(key, flag)
		}
	}

	// If a config file is found, read it in.
	if err := vipCfg.ReadInConfig(); err == nil {
		log.Debugln("using config file:", vipCfg.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debugln(err)
	}

	if err := vipCfg.Unmarshal(&o.Opt); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	o.Viper = vipCfg
	return nil
}

func (o *Desc) PostParse() {
	if o.Opt.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// Validate checks that options are consistent
func (o Opt) Validate() error {
	switch o.Transport.Kind {
	case TransportSocketCAN:
		if o.Transport.Interface == "" {
			return errors.New("socketcan transport requires interface name")
		}
	case TransportSLCAN:
		if o.Transport.Device == "" {
			return errors.New("slcan transport requires serial device path")
		}
		if o.Transport.Baud <= 0 {
			return fmt.Errorf("invalid serial baud rate: %v", o.Transport.Baud)
		}
		if o.Transport.Bitrate != 0 {
			if _, err := slcan.BitrateCommand(o.Transport.Bitrate); err != nil {
				return err
			}
		}
	case TransportCandump:
		if o.Transport.Device == "" {
			return errors.New("candump transport requires log file path")
		}
	default:
		return fmt.Errorf("unknown transport kind: %v", o.Transport.Kind)
	}

	switch o.Output.Format {
	case FormatText, FormatJSON, FormatNone:
	default:
		return fmt.Errorf("unknown output format: %v", o.Output.Format)
	}

	if err := validateAddressPart("model", o.Device.Model); err != nil {
		return err
	}
	if err := validateAddressPart("number", o.Device.Number); err != nil {
		return err
	}
	if o.Device.ReportPeriod < 0 {
		return fmt.Errorf("invalid report period: %v", o.Device.ReportPeriod)
	}
	if o.Capture.Timeout < 0 {
		return fmt.Errorf("invalid capture timeout: %v", o.Capture.Timeout)
	}
	if o.Capture.MaxFrames < 0 {
		return fmt.Errorf("invalid capture max frames: %v", o.Capture.MaxFrames)
	}
	return nil
}

func validateAddressPart(name string, value int) error {
	if value < Unset || value > 0xFF {
		return fmt.Errorf("invalid device %v: %v, must be -1 (capture) or 0-255", name, value)
	}
	return nil
}

// Selector converts configured model/number to device selector. Unset values are left for capture.
func (o Opt) Selector() imucan.DeviceSelector {
	s := imucan.DeviceSelector{}
	if o.Device.Model != Unset {
		m := uint8(o.Device.Model)
		s.Model = &m
	}
	if o.Device.Number != Unset {
		n := uint8(o.Device.Number)
		s.Number = &n
	}
	return s
}

// CaptureConfig converts capture options to library capture configuration
func (o Opt) CaptureConfig(logger log.FieldLogger) imucan.CaptureConfig {
	return imucan.CaptureConfig{
		Timeout:   o.Capture.Timeout,
		MaxFrames: o.Capture.MaxFrames,
		Logger:    logger,
	}
}

// Template renders options as yaml configuration template
func (o Opt) Template() ([]byte, error) {
	return yaml.Marshal(o)
}
