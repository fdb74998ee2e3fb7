package checkpoint

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore is the redis-like KV StateStore backend spec.md §6 anticipates,
// keying every state entry under a fixed prefix in one etcd cluster.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdStore wraps an already-configured etcd client, namespacing all
// keys under prefix (e.g. "/openlogreplicator/<database>/").
func NewEtcdStore(client *clientv3.Client, prefix string) *EtcdStore {
	return &EtcdStore{client: client, prefix: prefix}
}

func (e *EtcdStore) key(name string) string {
	return e.prefix + name
}

func (e *EtcdStore) List(ctx context.Context) ([]string, error) {
	resp, err := e.client.Get(ctx, e.prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, fmt.Errorf("checkpoint: etcd list: %w", err)
	}
	var names = make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		names = append(names, string(kv.Key)[len(e.prefix):])
	}
	return names, nil
}

func (e *EtcdStore) Read(ctx context.Context, name string, maxSize int) ([]byte, bool, error) {
	resp, err := e.client.Get(ctx, e.key(name))
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint: etcd read %q: %w", name, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	var data = resp.Kvs[0].Value
	if maxSize > 0 && len(data) > maxSize {
		return nil, false, fmt.Errorf("checkpoint: state %q exceeds max size %d", name, maxSize)
	}
	return data, true, nil
}

func (e *EtcdStore) Write(ctx context.Context, name string, data []byte) error {
	if _, err := e.client.Put(ctx, e.key(name), string(data)); err != nil {
		return fmt.Errorf("checkpoint: etcd write %q: %w", name, err)
	}
	return nil
}

func (e *EtcdStore) Drop(ctx context.Context, name string) error {
	if _, err := e.client.Delete(ctx, e.key(name)); err != nil {
		return fmt.Errorf("checkpoint: etcd drop %q: %w", name, err)
	}
	return nil
}
