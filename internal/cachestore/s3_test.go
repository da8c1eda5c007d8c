// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cachestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in a map. failPut, when set, is consulted before
// every PutObject.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut func(key string) error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(bytes.Clone(b)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if f.failPut != nil {
		if err := f.failPut(key); err != nil {
			return nil, err
		}
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3_Layout(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s, err := NewS3(fake, "bucket", "/offline/")
	require.NoError(t, err)

	c, err := s.Open(ctx, "xxii")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, get(t, "http://origin.test/a.js"), okResponse("a")))

	assert.Contains(t, fake.objects, "offline/xxii/.cache")
	assert.Contains(t, fake.objects, "offline/xxii/"+encodeKey("http://origin.test/a.js"))
}

func TestS3_PutAllRollsBack(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s, err := NewS3(fake, "bucket", "")
	require.NoError(t, err)

	c, err := s.Open(ctx, "xxii")
	require.NoError(t, err)

	failing := "xxii/" + encodeKey("http://origin.test/b.js")
	fake.failPut = func(key string) error {
		if key == failing {
			return errors.New("throttled")
		}
		return nil
	}

	err = c.PutAll(ctx, []Record{
		{Key: "http://origin.test/a.js", Response: okResponse("a")},
		{Key: "http://origin.test/b.js", Response: okResponse("b")},
	})
	assert.Error(t, err)

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(newFakeS3(), "", "x")
	assert.Error(t, err)
}
