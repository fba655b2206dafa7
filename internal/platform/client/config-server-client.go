// Package client talks to the control plane a node reports to: a thin
// resty wrapper that registers this instance and fetches the
// publish-target descriptor it needs.
package client

import (
	json "github.com/json-iterator/go"

	"github.com/go-resty/resty/v2"

	"ringlog/internal/platform/publisher"
)

const (
	nodesEndpoint  = "/api/v1/nodes"
	targetEndpoint = "/api/v1/target"
)

// RegisterNodeRequest announces this node to the control plane.
type RegisterNodeRequest struct {
	NodeID string `json:"node_id"`
	Addr   string `json:"addr"`
}

// RegisterNodeResponse is the control plane's acknowledgement.
type RegisterNodeResponse struct {
	NodeID string `json:"node_id"`
}

// targetDescriptor is the wire shape of the remote CoAP resource a node
// should publish to, mirroring publisher.Target field-for-field.
type targetDescriptor struct {
	Addr string `json:"addr"`
	Path string `json:"path"`
}

// ConfigServerClient is a resty-backed client for the control plane.
type ConfigServerClient struct {
	client    *resty.Client
	serverURL string
}

func NewConfigServerClient(serverURL string) *ConfigServerClient {
	c := resty.New()
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	return &ConfigServerClient{
		client:    c,
		serverURL: serverURL,
	}
}

// RegisterNode announces nodeID/addr to the control plane with a
// POST-and-decode call.
func (c *ConfigServerClient) RegisterNode(nodeID, addr string) (*RegisterNodeResponse, error) {
	var resp RegisterNodeResponse
	uri := c.serverURL + nodesEndpoint
	body := RegisterNodeRequest{NodeID: nodeID, Addr: addr}

	_, err := c.client.R().SetResult(&resp).SetBody(&body).Post(uri)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchPublishTarget retrieves the remote CoAP resource this node
// should publish its packs to with a GET-and-decode call.
func (c *ConfigServerClient) FetchPublishTarget() (publisher.Target, error) {
	var resp targetDescriptor
	uri := c.serverURL + targetEndpoint

	_, err := c.client.R().SetResult(&resp).Get(uri)
	if err != nil {
		return publisher.Target{}, err
	}
	return publisher.Target{Addr: resp.Addr, Path: resp.Path}, nil
}
