package config

import (
	"net"
	"os"
	"path/filepath"

	"github.com/discv5-testground/mockpeer/lib/util"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/spf13/viper"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const (
	MOCK_BASE_DIR   = ".discv5-mock"
	DefaultKeyName  = "node.key"
	DefaultUDPPort  = 9000
	DefaultQueueLen = 30
)

// MockConfig is the typed view of the viper settings.
type MockConfig struct {
	// BaseDir holds the node key unless KeyFile names another path.
	BaseDir     string
	ListenIP    net.IP
	ListenPort  int
	KeyFile     string
	ENRSeq      uint64
	AdvertiseIP net.IP
	// Script is the path of the behaviour script.
	Script            string
	QueueSize         int
	SendRate          float64
	VerifyIDSignature bool
}

// InitConfig points viper at CfgFile or the default location, loads
// defaults and reads the file. A missing default file is created.
func InitConfig() error {
	if CfgFile != "" {
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildMockDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	return handleConfigFile()
}

func setDefaults() {
	viper.SetDefault("base_dir", BuildMockDirPath())

	viper.SetDefault("listen.ip", "0.0.0.0")
	viper.SetDefault("listen.port", DefaultUDPPort)

	viper.SetDefault("node.key_file", "")
	viper.SetDefault("node.enr_seq", 1)
	viper.SetDefault("node.advertise_ip", "")

	viper.SetDefault("script", "")

	viper.SetDefault("transport.queue_size", DefaultQueueLen)
	viper.SetDefault("transport.send_rate", 0.0)

	viper.SetDefault("handler.verify_id_signature", true)
}

// NewMockConfigFromViper builds a MockConfig from the current viper settings.
func NewMockConfigFromViper() (*MockConfig, error) {
	listenIP := net.ParseIP(viper.GetString("listen.ip"))
	if listenIP == nil {
		return nil, oops.Errorf("invalid listen.ip %q", viper.GetString("listen.ip"))
	}
	port := viper.GetInt("listen.port")
	if port < 0 || port > 65535 {
		return nil, oops.Errorf("invalid listen.port %d", port)
	}

	var advertise net.IP
	if s := viper.GetString("node.advertise_ip"); s != "" {
		if advertise = net.ParseIP(s); advertise == nil {
			return nil, oops.Errorf("invalid node.advertise_ip %q", s)
		}
	}

	queue := viper.GetInt("transport.queue_size")
	if queue <= 0 {
		log.WithFields(logger.Fields{
			"at":         "NewMockConfigFromViper",
			"queue_size": queue,
		}).Warn("invalid_queue_size_using_default")
		queue = DefaultQueueLen
	}

	baseDir := viper.GetString("base_dir")
	keyFile := viper.GetString("node.key_file")
	if keyFile == "" {
		keyFile = filepath.Join(baseDir, DefaultKeyName)
	}

	return &MockConfig{
		BaseDir:           baseDir,
		ListenIP:          listenIP,
		ListenPort:        port,
		KeyFile:           keyFile,
		ENRSeq:            viper.GetUint64("node.enr_seq"),
		AdvertiseIP:       advertise,
		Script:            viper.GetString("script"),
		QueueSize:         queue,
		SendRate:          viper.GetFloat64("transport.send_rate"),
		VerifyIDSignature: viper.GetBool("handler.verify_id_signature"),
	}, nil
}

func createDefaultConfig(defaultConfigDir string) error {
	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := os.MkdirAll(defaultConfigDir, 0o755); err != nil {
		return oops.Wrapf(err, "could not create config directory %s", defaultConfigDir)
	}
	if err := viper.WriteConfigAs(defaultConfigFile); err != nil {
		return oops.Wrapf(err, "could not write default config file")
	}
	log.Debugf("Created default configuration at: %s", defaultConfigFile)
	return nil
}

func handleConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		switch {
		case CfgFile != "" && (notFound || !util.CheckFileExists(CfgFile)):
			return oops.Wrapf(err, "config file %s is not found", CfgFile)
		case notFound:
			return createDefaultConfig(BuildMockDirPath())
		default:
			return oops.Wrapf(err, "error reading config file")
		}
	}
	log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	return nil
}

// BuildMockDirPath is $HOME/.discv5-mock.
func BuildMockDirPath() string {
	return filepath.Join(util.UserHome(), MOCK_BASE_DIR)
}
