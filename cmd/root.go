package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nuecms/storage-provider/config"
)

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storage-provider",
	Short: "Unified object storage gateway",
	Long: `storage-provider exposes local disk, S3 compatible services, Aliyun OSS,
Tencent COS and WebDAV servers behind one HTTP API and one CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		serveCmd.Run(cmd, args)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "config file path (eg: /etc/storage-provider/.env)")
}

// initRuntime 加载配置并返回全局配置实例
func initRuntime() *config.Config {
	config.SetConfigFile(envFile)
	config.InitConfig()
	return config.Get()
}
