package accessory

import "github.com/fakhrymubarak/weatherlink-sensor/internal/model"

const (
	Manufacturer     = "WeatherLink"
	FirmwareRevision = "0.0.1"
)

// Information describes the accessory to the host.
type Information struct {
	Name             string `json:"name"`
	Manufacturer     string `json:"manufacturer"`
	Model            string `json:"model"`
	SerialNumber     string `json:"serial_number"`
	FirmwareRevision string `json:"firmware_revision"`
}

// NewInformation reports the scale as the model and the station source id as the serial number.
func NewInformation(cfg model.AccessoryConfig) Information {
	return Information{
		Name:             cfg.Name,
		Manufacturer:     Manufacturer,
		Model:            cfg.Scale.String(),
		SerialNumber:     cfg.SourceID,
		FirmwareRevision: FirmwareRevision,
	}
}
