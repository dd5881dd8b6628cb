// Package azure uploads images to an Azure Blob Storage container.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/radiofrance/imgtag/pkg/logger"
	"github.com/radiofrance/imgtag/pkg/provider"
)

const Name = "azure"

func init() {
	provider.Register(Name, New)
}

// Options is the provider_config of the azure provider.
type Options struct {
	Account   string `mapstructure:"account"`
	Container string `mapstructure:"container"`
	// ConnectionString replaces account-based authentication when set (e.g. for Azurite).
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
	BaseURL          string `mapstructure:"base_url"`
	Fingerprint      bool   `mapstructure:"fingerprint"`
}

// blobAPI is what the provider needs from Blob Storage.
type blobAPI interface {
	Exists(ctx context.Context, container, name string) (bool, error)
	Upload(ctx context.Context, container, name string, body io.Reader, contentType string) error
	URL() string
}

// Provider uploads images missing from the container and returns their URL.
type Provider struct {
	client blobAPI
	cfg    provider.Config
	opts   Options
}

// New is the provider.Factory of the azure provider.
// Without a connection string, credentials come from azidentity.DefaultAzureCredential.
func New(_ context.Context, cfg provider.Config) (provider.Provider, error) {
	opts, err := parseOptions(cfg)
	if err != nil {
		return nil, err
	}

	if opts.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure client: %w", err)
		}
		return NewWithClient(sdkClient{client}, cfg)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", opts.Account)

	_, err = url.Parse(serviceURL)
	if opts.Account == "" || err != nil {
		return nil, fmt.Errorf("invalid azure storage service URL %q", serviceURL)
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return NewWithClient(sdkClient{client}, cfg)
}

// NewWithClient builds a provider on top of an existing Blob Storage client.
func NewWithClient(client blobAPI, cfg provider.Config) (*Provider, error) {
	opts, err := parseOptions(cfg)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: client,
		cfg:    cfg,
		opts:   opts,
	}, nil
}

func parseOptions(cfg provider.Config) (Options, error) {
	var opts Options
	if err := cfg.Decode(&opts); err != nil {
		return opts, err
	}

	if opts.Container == "" {
		return opts, errors.New("azure container name is required")
	}

	return opts, nil
}

func (p *Provider) RemoteLink(ctx context.Context, localPath string) (string, error) {
	key, err := provider.ObjectKey(p.cfg, localPath, p.opts.Prefix, p.opts.Fingerprint)
	if err != nil {
		return "", err
	}

	exists, err := p.client.Exists(ctx, p.opts.Container, key)
	if err != nil {
		return "", fmt.Errorf("failed to get blob properties: %w", err)
	}

	if !exists {
		if err := p.UploadFile(ctx, localPath, key); err != nil {
			return "", err
		}
		logger.Infof("Uploaded %s to azure container %s as %s", filepath.Base(localPath), p.opts.Container, key)
	}

	if p.opts.BaseURL != "" {
		return provider.JoinURL(p.opts.BaseURL, key), nil
	}

	return provider.JoinURL(p.client.URL(), p.opts.Container+"/"+key), nil
}

// UploadFile uploads a file to the container under targetPath.
func (p *Provider) UploadFile(ctx context.Context, filePath, targetPath string) error {
	file, err := p.cfg.FS().Open(filePath)
	if err != nil {
		return fmt.Errorf("can't open file %s: %w", filePath, err)
	}

	defer func() {
		err := file.Close()
		if err != nil {
			logger.Errorf("can't close file %s: %v", filePath, err)
		}
	}()

	err = p.client.Upload(ctx, p.opts.Container, targetPath, file, mime.TypeByExtension(filepath.Ext(filePath)))
	if err != nil {
		return fmt.Errorf("failed to upload file to Azure Blob Storage: %w", err)
	}

	return nil
}

type sdkClient struct {
	client *azblob.Client
}

func (c sdkClient) Exists(ctx context.Context, container, name string) (bool, error) {
	_, err := c.client.ServiceClient().
		NewContainerClient(container).
		NewBlobClient(name).
		GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}

	return false, err
}

func (c sdkClient) Upload(ctx context.Context, container, name string, body io.Reader, contentType string) error {
	var opts *azblob.UploadStreamOptions
	if contentType != "" {
		opts = &azblob.UploadStreamOptions{
			HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		}
	}

	_, err := c.client.UploadStream(ctx, container, name, body, opts)

	return err
}

func (c sdkClient) URL() string {
	return c.client.URL()
}
