// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "EndoscopyAI-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "endoscopy.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("service.baseurl", "http://127.0.0.1:8000")
	viper.SetDefault("service.timeout", 60)
	viper.SetDefault("service.useragent", "EndoscopyAI-Go")

	viper.SetDefault("probe.endpoint", "/health")
	viper.SetDefault("probe.timeout", 10)
	viper.SetDefault("probe.cachettl", 300)

	viper.SetDefault("report.endpoint", "/generate-report")
	viper.SetDefault("report.filename", "diagnosis_report.pdf")
	viper.SetDefault("report.timeout", 60)

	viper.SetDefault("gateway.enabled", false)
	viper.SetDefault("gateway.listen", "127.0.0.1:8080")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "history.db")
}
