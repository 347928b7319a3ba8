// Package model defines shared configuration structures used to initialize
// the rover system. It includes global settings plus per-node definitions.
package model

// Config represents the root structure loaded from configs/rover.yml.
type Config struct {
	Global    GlobalConfig    `yaml:"global"`
	Can       CanConfig       `yaml:"can"`
	Cam       CamConfig       `yaml:"cam"`
	Comm      CommConfig      `yaml:"comm"`
	Gps       GpsConfig       `yaml:"gps"`
	Gyro      GyroConfig      `yaml:"gyro"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GlobalConfig defines shared defaults across the system.
type GlobalConfig struct {
	ParametersFile string `yaml:"parameters_file" env:"ROVER_PARAMETERS_FILE"` // colon-delimited nav tunables
	PollIntervalMs int    `yaml:"poll_interval_ms" env:"ROVER_POLL_INTERVAL_MS"`
	Calibrate      bool   `yaml:"calibrate" env:"ROVER_CALIBRATE"` // run the turn calibration procedure at startup
}

// CanConfig defines the motor command edge.
type CanConfig struct {
	Device string `yaml:"device" env:"ROVER_CAN_DEVICE"` // serial device for the CAN adapter, empty for simulated
	Baud   int    `yaml:"baud" env:"ROVER_CAN_BAUD"`
	SID    uint32 `yaml:"sid" env:"ROVER_CAN_SID"` // CAN arbitration id for motor commands
}

// CamConfig defines the segmentation mask producer.
type CamConfig struct {
	Width  int `yaml:"width" env:"ROVER_CAM_WIDTH"`
	Height int `yaml:"height" env:"ROVER_CAM_HEIGHT"`
}

// CommConfig defines the controller-facing bridge.
type CommConfig struct {
	Listen string `yaml:"listen" env:"ROVER_COMM_LISTEN"` // websocket listen address, empty to disable
}

// GpsConfig defines the position producer.
type GpsConfig struct {
	SampleIntervalMs int `yaml:"sample_interval_ms" env:"ROVER_GPS_SAMPLE_INTERVAL_MS"`
	AverageCount     int `yaml:"average_count" env:"ROVER_GPS_AVERAGE_COUNT"` // fixes averaged before publishing
}

// GyroConfig defines the turn-angle producer.
type GyroConfig struct {
	SampleHz     int     `yaml:"sample_hz" env:"ROVER_GYRO_SAMPLE_HZ"`
	SampleWindow float64 `yaml:"sample_window_s" env:"ROVER_GYRO_SAMPLE_WINDOW_S"` // seconds sampled per turn request
}

// TelemetryConfig defines the optional MQTT status emitter.
type TelemetryConfig struct {
	Broker   string `yaml:"broker" env:"ROVER_MQTT_BROKER"` // empty disables telemetry
	ClientID string `yaml:"client_id" env:"ROVER_MQTT_CLIENT_ID"`
	Topic    string `yaml:"topic" env:"ROVER_MQTT_TOPIC"`
	PeriodMs int    `yaml:"period_ms" env:"ROVER_MQTT_PERIOD_MS"`
}
