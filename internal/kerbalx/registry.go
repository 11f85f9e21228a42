package kerbalx

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/five82/kxapi/internal/logging"
	"github.com/five82/kxapi/internal/session"
)

// TokenStore persists the auth token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Delete() error
}

// RegistryOptions configures NewRegistry.
type RegistryOptions struct {
	Tokens      TokenStore
	GameVersion string
	Logger      logrus.FieldLogger
}

// Registry owns the clients sharing one transport and session. Registering
// a name that already exists replaces the earlier client.
type Registry struct {
	transport   *Transport
	tokens      TokenStore
	gameVersion string
	log         logrus.FieldLogger

	mu        sync.Mutex
	clients   map[string]*Client
	userCraft CraftList
}

// NewRegistry builds an empty registry over transport.
func NewRegistry(transport *Transport, opts RegistryOptions) *Registry {
	return &Registry{
		transport:   transport,
		tokens:      opts.Tokens,
		gameVersion: opts.GameVersion,
		log:         logging.OrDiscard(opts.Logger).WithField("component", "client"),
		clients:     make(map[string]*Client),
	}
}

// Register creates a client for id.
func (r *Registry) Register(id Identity) *Client {
	c := &Client{
		id:       id,
		registry: r,
		log:      r.log.WithFields(logrus.Fields{"client": id.Name, "client_version": id.Version}),
	}
	r.mu.Lock()
	if prev, ok := r.clients[id.Name]; ok {
		r.log.WithFields(logrus.Fields{
			"client":      id.Name,
			"old_version": prev.id.Version,
			"new_version": id.Version,
		}).Warn("client already registered, replacing")
	}
	r.clients[id.Name] = c
	r.mu.Unlock()
	return c
}

// Lookup returns the client registered under name.
func (r *Registry) Lookup(name string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[name]
	return c, ok
}

// Names lists registered client names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Session returns the shared session.
func (r *Registry) Session() *session.Session {
	return r.transport.Session()
}

// Transport returns the shared transport.
func (r *Registry) Transport() *Transport {
	return r.transport
}

func (r *Registry) setUserCraft(list CraftList) {
	r.mu.Lock()
	r.userCraft = list
	r.mu.Unlock()
}

func (r *Registry) userCraftCopy() CraftList {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userCraft.Clone()
}
