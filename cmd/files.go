package cmd

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuecms/storage-provider/namegen"
	"github.com/nuecms/storage-provider/storage"
	"github.com/nuecms/storage-provider/utils/format"
)

// uploadCmd 上传本地文件
var uploadCmd = &cobra.Command{
	Use:   "upload <file> [remote-name]",
	Short: "Upload a local file to a storage backend",
	Long: `Upload a local file to a storage backend.

Example:
  # Upload to the default backend, keeping the original file name
  storage-provider upload ./photo.jpg

  # Upload under a different remote name
  storage-provider upload ./photo.jpg avatar.jpg

  # Upload into a directory on a specific backend
  storage-provider upload ./photo.jpg --directory avatars --provider s3

  # Let the generator pick a random name under a date directory
  storage-provider upload ./photo.jpg --auto-name`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		directory, _ := cmd.Flags().GetString("directory")
		providerName, _ := cmd.Flags().GetString("provider")
		generate, _ := cmd.Flags().GetBool("auto-name")

		remoteName := ""
		if len(args) == 2 {
			remoteName = args[1]
		}

		if err := runUpload(args[0], remoteName, directory, providerName, generate); err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
	},
}

// downloadCmd 下载文件
var downloadCmd = &cobra.Command{
	Use:   "download <path>",
	Short: "Download a file from a storage backend",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		providerName, _ := cmd.Flags().GetString("provider")

		if err := runDownload(args[0], output, providerName); err != nil {
			log.Fatalf("Download failed: %v", err)
		}
	},
}

// deleteCmd 删除文件
var deleteCmd = &cobra.Command{
	Use:     "delete <path>",
	Aliases: []string{"rm"},
	Short:   "Delete a file from a storage backend",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		providerName, _ := cmd.Flags().GetString("provider")

		if err := runDelete(args[0], providerName); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
	},
}

// listCmd 列举目录下的文件
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List files in a storage directory",
	Run: func(cmd *cobra.Command, args []string) {
		directory, _ := cmd.Flags().GetString("directory")
		providerName, _ := cmd.Flags().GetString("provider")
		marker, _ := cmd.Flags().GetString("marker")
		maxKeys, _ := cmd.Flags().GetInt("max-keys")

		if err := runList(directory, providerName, marker, maxKeys); err != nil {
			log.Fatalf("List failed: %v", err)
		}
	},
}

// urlCmd 获取文件访问链接
var urlCmd = &cobra.Command{
	Use:   "url <path>",
	Short: "Print the access URL of a stored file",
	Run: func(cmd *cobra.Command, args []string) {
		providerName, _ := cmd.Flags().GetString("provider")
		expires, _ := cmd.Flags().GetDuration("expires")
		signed, _ := cmd.Flags().GetBool("signed")

		if err := runURL(args[0], providerName, expires, signed); err != nil {
			log.Fatalf("URL failed: %v", err)
		}
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(urlCmd)

	uploadCmd.Flags().StringP("directory", "d", "", "Target directory inside the backend")
	uploadCmd.Flags().StringP("provider", "p", "", "Provider instance name (default: configured default)")
	uploadCmd.Flags().Bool("auto-name", false, "Store under a generated name in a date directory")

	downloadCmd.Flags().StringP("output", "o", "", "Output file path ('-' for stdout, default: base name of path)")
	downloadCmd.Flags().StringP("provider", "p", "", "Provider instance name")

	deleteCmd.Flags().StringP("provider", "p", "", "Provider instance name")

	listCmd.Flags().StringP("directory", "d", "", "Directory to list")
	listCmd.Flags().StringP("provider", "p", "", "Provider instance name")
	listCmd.Flags().String("marker", "", "List entries after this name")
	listCmd.Flags().Int("max-keys", 0, "Maximum number of entries (default: backend default)")

	urlCmd.Flags().StringP("provider", "p", "", "Provider instance name")
	urlCmd.Flags().Duration("expires", 0, "Validity of a signed URL (eg: 10m)")
	urlCmd.Flags().Bool("signed", false, "Sign the URL with the default validity")
}

// newDriver 从配置组装存储驱动
func newDriver() (*storage.Driver, error) {
	cfg := initRuntime()
	return storage.NewDriverFromSpecs(cfg.ProviderSpecs())
}

// splitStoragePath 拆分组合路径，文件名不能为空
func splitStoragePath(path string) (string, string, error) {
	dir, file := storage.SplitPath(path)
	if file == "" {
		return "", "", fmt.Errorf("invalid storage path: '%s'", path)
	}
	return dir, file, nil
}

// runUpload 执行上传
func runUpload(file, remoteName, directory, providerName string, generate bool) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}
	provider, err := driver.Provider(providerName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	fileName := remoteName
	if fileName == "" {
		fileName = filepath.Base(file)
	}
	if generate {
		name := namegen.NewGenerator().Generate(fileName, time.Now())
		fileName = name.FileName
		directory = storage.JoinKey(directory, name.Directory)
	}

	result, err := provider.Upload(context.Background(), data, fileName, &storage.Options{
		Directory:   directory,
		ContentType: mime.TypeByExtension(filepath.Ext(fileName)),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded %s (%s) via '%s'\n", result.Path, format.FormatSize(int64(len(data))), provider.Name())
	fmt.Printf("URL: %s\n", result.URL)
	if result.ETag != "" {
		fmt.Printf("ETag: %s\n", result.ETag)
	}
	return nil
}

// runDownload 执行下载
func runDownload(path, output, providerName string) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}
	provider, err := driver.Provider(providerName)
	if err != nil {
		return err
	}
	dir, file, err := splitStoragePath(path)
	if err != nil {
		return err
	}

	data, err := provider.Download(context.Background(), file, &storage.Options{Directory: dir})
	if err != nil {
		return err
	}

	if output == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if output == "" {
		output = file
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return err
	}

	fmt.Printf("Saved %s (%s)\n", output, format.FormatSize(int64(len(data))))
	return nil
}

// runDelete 执行删除，键不存在不视为错误
func runDelete(path, providerName string) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}
	provider, err := driver.Provider(providerName)
	if err != nil {
		return err
	}
	dir, file, err := splitStoragePath(path)
	if err != nil {
		return err
	}

	result, err := provider.Delete(context.Background(), file, &storage.Options{Directory: dir})
	if err != nil {
		return err
	}

	if result.Success {
		fmt.Printf("Deleted %s\n", path)
	} else {
		fmt.Printf("Skipped: %s\n", result.Message)
	}
	return nil
}

// runList 执行列举
func runList(directory, providerName, marker string, maxKeys int) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}
	provider, err := driver.Provider(providerName)
	if err != nil {
		return err
	}

	names, err := provider.List(context.Background(), &storage.Options{
		Directory: directory,
		Marker:    marker,
		MaxKeys:   maxKeys,
	})
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// runURL 打印访问链接
func runURL(path, providerName string, expires time.Duration, signed bool) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}
	provider, err := driver.Provider(providerName)
	if err != nil {
		return err
	}
	dir, file, err := splitStoragePath(path)
	if err != nil {
		return err
	}

	url, err := provider.GetURL(context.Background(), file, &storage.Options{
		Directory: dir,
		Expires:   expires,
		Signed:    signed,
	})
	if err != nil {
		return err
	}

	fmt.Println(url)
	return nil
}
