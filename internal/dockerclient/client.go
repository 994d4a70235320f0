// Package docker wraps the subset of the Docker Engine API that the
// resolver needs: locating a usable daemon and resolving an image
// reference to its remote content digest, without ever starting a
// container. Sift is a static manager — the MCP server processes
// themselves are launched by the client (`docker run ...`), not by Sift.
package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
)

type Client struct {
	api *client.Client
}

func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	if err := pingClient(cli); err == nil {
		return &Client{api: cli}, nil
	} else if os.Getenv("DOCKER_HOST") != "" {
		_ = cli.Close()
		return nil, err
	}
	_ = cli.Close()
	if host, ok := AutoDockerHost(); ok {
		alt, altErr := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
		if altErr != nil {
			return nil, err
		}
		if pingErr := pingClient(alt); pingErr == nil {
			return &Client{api: alt}, nil
		}
		_ = alt.Close()
	}
	return nil, err
}

func pingClient(cli *client.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Ping(ctx)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// RegistryAuth encodes username and password as the base64
// X-Registry-Auth header value, or returns "" when both are empty. It does
// not look up docker config credentials. MCP sources rarely need private
// images, so a missing credential is not an error here;
// DistributionInspect is simply attempted anonymously.
func RegistryAuth(username, password string) (string, error) {
	if username == "" && password == "" {
		return "", nil
	}
	buf, err := json.Marshal(registry.AuthConfig{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// ImageDigest is the package-level entry point the resolver wires into
// Resolver.DockerDigest: open a daemon connection, resolve one digest,
// close it. A dedicated long-lived client isn't worth keeping around for
// a resolution path that runs once per resource per invocation.
func ImageDigest(ctx context.Context, imageRef string) (string, error) {
	c, err := NewClient()
	if err != nil {
		return "", fmt.Errorf("connect to docker daemon: %w", err)
	}
	defer func() { _ = c.Close() }()
	return c.imageDigest(ctx, imageRef, "")
}

// imageDigest resolves imageRef (e.g. "anthropics/fetch-mcp:latest") to its
// remote content digest via a registry distribution inspect, without
// pulling the image. This is the resolution rule the resolver applies to
// "MCP docker" sources in SPEC_FULL.md §4.3.
func (c *Client) imageDigest(ctx context.Context, imageRef string, encodedAuth string) (string, error) {
	if strings.TrimSpace(imageRef) == "" {
		return "", errors.New("image reference required")
	}
	inspect, err := c.api.DistributionInspect(ctx, imageRef, encodedAuth)
	if err != nil {
		return "", fmt.Errorf("inspect %s: %w", imageRef, err)
	}
	digest := inspect.Descriptor.Digest.String()
	if digest == "" {
		return "", fmt.Errorf("registry returned empty digest for %s", imageRef)
	}
	return digest, nil
}
