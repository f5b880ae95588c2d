package sources

import (
	"github.com/samvad-hq/rutas-relay/pkg/httpclient"
	"github.com/samvad-hq/rutas-relay/pkg/routes"
)

// ClientFor builds an HTTP client bound to the source's base URL, headers and token.
func ClientFor(s Source) httpclient.Client {
	return httpclient.NewRestyClientWithOptions(httpclient.Options{
		BaseURL:   s.BaseURL,
		Timeout:   s.Timeout(),
		Headers:   s.Headers,
		AuthToken: s.AuthToken,
	})
}

// ServiceFor builds a routes.Service targeting the source's collection.
func ServiceFor(s Source) *routes.Service {
	return routes.NewService(ClientFor(s), routes.WithCollectionPath(s.CollectionPath))
}
