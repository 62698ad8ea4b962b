package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// SplitFileCredentialsProvider reads client and owner credentials from
// two separate JSON files. A fsnotify watcher invalidates a small
// in-process cache when either file changes on disk, so a credential
// rotation is picked up on the next call without a process restart;
// parsing itself stays lazy so an unrelated write event doesn't cost a
// read.
type SplitFileCredentialsProvider struct {
	clientPath string
	ownerPath  string
	clientP    ClientCredentialsParser
	ownerP     OwnerCredentialsParser

	mu           sync.Mutex
	cachedClient *ClientCredentials
	cachedOwner  *OwnerCredentials
	watcher      *fsnotify.Watcher
}

// New creates a provider for the given file paths and parsers.
func New(clientPath, ownerPath string, clientParser ClientCredentialsParser, ownerParser OwnerCredentialsParser) *SplitFileCredentialsProvider {
	p := &SplitFileCredentialsProvider{
		clientPath: clientPath,
		ownerPath:  ownerPath,
		clientP:    clientParser,
		ownerP:     ownerParser,
	}
	p.startWatching()
	return p
}

// WithDefaultParsers creates a provider using the default JSON field
// names for both files.
func WithDefaultParsers(clientPath, ownerPath string) *SplitFileCredentialsProvider {
	return New(clientPath, ownerPath, DefaultClientCredentialsParser{}, DefaultOwnerCredentialsParser{})
}

// WithDefaultClientParser creates a provider using the default client
// parser and a caller-supplied owner parser.
func WithDefaultClientParser(clientPath, ownerPath string, ownerParser OwnerCredentialsParser) *SplitFileCredentialsProvider {
	return New(clientPath, ownerPath, DefaultClientCredentialsParser{}, ownerParser)
}

// WithDefaultClientParserFromEnv builds a provider from
// TOKKIT_CREDENTIALS_DIR (or its fallback CREDENTIALS_DIR),
// TOKKIT_CREDENTIALS_CLIENT_FILENAME (default client.json) and
// TOKKIT_CREDENTIALS_RESOURCE_OWNER_FILENAME (default user.json).
func WithDefaultClientParserFromEnv(ownerParser OwnerCredentialsParser) (*SplitFileCredentialsProvider, error) {
	dir, err := credentialsDirFromEnv()
	if err != nil {
		return nil, err
	}

	clientFile := os.Getenv("TOKKIT_CREDENTIALS_CLIENT_FILENAME")
	if clientFile == "" {
		log.Warn("no client file name configured, assuming 'client.json'")
		clientFile = "client.json"
	}

	ownerFile := os.Getenv("TOKKIT_CREDENTIALS_RESOURCE_OWNER_FILENAME")
	if ownerFile == "" {
		log.Warn("no owner file name configured, assuming 'user.json'")
		ownerFile = "user.json"
	}

	clientPath := filepath.Join(dir, clientFile)
	ownerPath := filepath.Join(dir, ownerFile)

	log.WithFields(log.Fields{
		"client_path": clientPath,
		"owner_path":  ownerPath,
	}).Info("credential file paths resolved")

	return WithDefaultClientParser(clientPath, ownerPath, ownerParser), nil
}

// WithDefaultParsersFromEnv is WithDefaultClientParserFromEnv with the
// default owner parser.
func WithDefaultParsersFromEnv() (*SplitFileCredentialsProvider, error) {
	return WithDefaultClientParserFromEnv(DefaultOwnerCredentialsParser{})
}

func credentialsDirFromEnv() (string, error) {
	if dir, ok := os.LookupEnv("TOKKIT_CREDENTIALS_DIR"); ok {
		return dir, nil
	}
	log.Info("'TOKKIT_CREDENTIALS_DIR' not set, looking for 'CREDENTIALS_DIR'")
	if dir, ok := os.LookupEnv("CREDENTIALS_DIR"); ok {
		return dir, nil
	}
	return "", fmt.Errorf("credentials: set TOKKIT_CREDENTIALS_DIR or CREDENTIALS_DIR")
}

func (p *SplitFileCredentialsProvider) startWatching() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("credentials: could not start file watcher, hot reload disabled")
		return
	}
	if err := watcher.Add(p.clientPath); err != nil {
		log.WithError(err).WithField("path", p.clientPath).Warn("credentials: could not watch client credentials file")
	}
	if err := watcher.Add(p.ownerPath); err != nil {
		log.WithError(err).WithField("path", p.ownerPath).Warn("credentials: could not watch owner credentials file")
	}
	p.watcher = watcher
	go p.watchLoop()
}

func (p *SplitFileCredentialsProvider) watchLoop() {
	for event := range p.watcher.Events {
		if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
			continue
		}
		log.WithField("path", event.Name).Info("credentials: file changed on disk, invalidating cache")
		p.mu.Lock()
		p.cachedClient = nil
		p.cachedOwner = nil
		p.mu.Unlock()
	}
}

// Close stops the background file watcher.
func (p *SplitFileCredentialsProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Close()
}

// ClientCredentials implements Provider.
func (p *SplitFileCredentialsProvider) ClientCredentials() (ClientCredentials, error) {
	p.mu.Lock()
	if p.cachedClient != nil {
		defer p.mu.Unlock()
		return *p.cachedClient, nil
	}
	p.mu.Unlock()

	data, err := os.ReadFile(p.clientPath)
	if err != nil {
		return ClientCredentials{}, err
	}
	creds, err := p.clientP.Parse(data)
	if err != nil {
		return ClientCredentials{}, err
	}

	p.mu.Lock()
	p.cachedClient = &creds
	p.mu.Unlock()
	return creds, nil
}

// OwnerCredentials implements Provider.
func (p *SplitFileCredentialsProvider) OwnerCredentials() (OwnerCredentials, error) {
	p.mu.Lock()
	if p.cachedOwner != nil {
		defer p.mu.Unlock()
		return *p.cachedOwner, nil
	}
	p.mu.Unlock()

	data, err := os.ReadFile(p.ownerPath)
	if err != nil {
		return OwnerCredentials{}, err
	}
	creds, err := p.ownerP.Parse(data)
	if err != nil {
		return OwnerCredentials{}, err
	}

	p.mu.Lock()
	p.cachedOwner = &creds
	p.mu.Unlock()
	return creds, nil
}

// Credentials implements Provider.
func (p *SplitFileCredentialsProvider) Credentials() (RequestTokenCredentials, error) {
	client, err := p.ClientCredentials()
	if err != nil {
		return RequestTokenCredentials{}, err
	}
	owner, err := p.OwnerCredentials()
	if err != nil {
		return RequestTokenCredentials{}, err
	}
	return RequestTokenCredentials{Client: client, Owner: owner}, nil
}

var _ Provider = (*SplitFileCredentialsProvider)(nil)
