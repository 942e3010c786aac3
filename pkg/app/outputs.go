package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericogr/balloon-flight-controller/pkg/config"
	"github.com/ericogr/balloon-flight-controller/pkg/output"
	"github.com/ericogr/balloon-flight-controller/pkg/output/console"
	"github.com/ericogr/balloon-flight-controller/pkg/output/mqtt"
)

// initOutputs creates the record mirrors. An unknown type is a configuration
// error; a broker that cannot be reached only loses the downlink.
func initOutputs(cfg config.Config, logger *slog.Logger) ([]output.Output, error) {
	var outs []output.Output
	for _, o := range cfg.Outputs {
		switch strings.ToLower(o.Type) {
		case config.OutputConsole:
			outs = append(outs, console.NewConsole())
		case config.OutputMQTT:
			var mc config.MQTTConfig
			if o.MQTT != nil {
				mc = *o.MQTT
			}
			out, err := mqtt.NewMQTT(mc)
			if err != nil {
				logger.Warn("mqtt downlink unavailable", "server", mc.Server, "err", err)
				continue
			}
			outs = append(outs, out)
		default:
			for _, out := range outs {
				out.Close()
			}
			return nil, fmt.Errorf("unknown output type %q", o.Type)
		}
	}
	return outs, nil
}
