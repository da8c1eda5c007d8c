// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cachestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// markerObject is written once per cache so empty caches are listable.
const markerObject = ".cache"

// S3API is the subset of *s3.Client used by the S3 storage.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 is a Storage in an S3 bucket. Objects live at
// prefix/<cache name>/<md5 of key>.
type S3 struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time

	opened sync.Map
}

func NewS3(client S3API, bucket, prefix string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}, nil
}

func (s *S3) root() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

func (s *S3) dir(name string) string {
	return s.root() + url.PathEscape(name) + "/"
}

func (s *S3) Open(ctx context.Context, name string) (Cache, error) {
	if name == "" {
		return nil, ErrNoName
	}
	c := &s3Cache{name: name, dir: s.dir(name), store: s}

	if _, done := s.opened.Load(name); done {
		return c, nil
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(c.dir + markerObject),
		Body:   bytes.NewReader(nil),
	}); err != nil {
		return nil, fmt.Errorf("open cache %s: %w", name, err)
	}
	s.opened.Store(name, struct{}{})
	return c, nil
}

func (s *S3) Keys(ctx context.Context) ([]string, error) {
	var names []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.root()),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list caches: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			dir := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), s.root()), "/")
			name, err := url.PathUnescape(dir)
			if err != nil {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3) Delete(ctx context.Context, name string) (bool, error) {
	keys, err := s.list(ctx, s.dir(name))
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if err := s.remove(ctx, k); err != nil {
			return false, fmt.Errorf("delete cache %s: %w", name, err)
		}
	}
	s.opened.Delete(name)
	return len(keys) > 0, nil
}

func (s *S3) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3) get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *S3) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

func (s *S3) remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

type s3Cache struct {
	name  string
	dir   string
	store *S3
}

func (c *s3Cache) Name() string { return c.name }

func (c *s3Cache) object(key string) string {
	return c.dir + encodeKey(key)
}

func (c *s3Cache) Match(ctx context.Context, req *http.Request) (*Response, bool, error) {
	key, ok := matchKey(req)
	if !ok {
		return nil, false, nil
	}

	raw, ok, err := c.store.get(ctx, c.object(key))
	if err != nil {
		return nil, false, fmt.Errorf("match %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	stored, r, err := decodeEntry(raw)
	if err != nil {
		log.WithError(err).Warnf("ignoring cache object for %s", key)
		return nil, false, nil
	}
	if stored != key {
		return nil, false, nil
	}
	return r, true, nil
}

func (c *s3Cache) Put(ctx context.Context, req *http.Request, resp *Response) error {
	rec, err := putRecord(req, resp)
	if err != nil {
		return err
	}
	return c.PutAll(ctx, []Record{rec})
}

// PutAll writes the objects one by one. When a write fails, the objects
// already written by this call are removed again.
func (c *s3Cache) PutAll(ctx context.Context, records []Record) error {
	if err := checkRecords(records); err != nil {
		return err
	}

	now := c.store.now()
	written := make([]string, 0, len(records))
	for _, r := range records {
		data, err := encodeEntry(r.Key, stamp(r.Response, now))
		if err != nil {
			return err
		}
		obj := c.object(r.Key)
		if err := c.store.put(ctx, obj, data); err != nil {
			for _, w := range written {
				if rerr := c.store.remove(ctx, w); rerr != nil {
					log.WithError(rerr).Warnf("failed to roll back %s", w)
				}
			}
			return fmt.Errorf("put %s: %w", r.Key, err)
		}
		written = append(written, obj)
	}
	return nil
}

func (c *s3Cache) Entries(ctx context.Context) ([]Record, error) {
	keys, err := c.store.list(ctx, c.dir)
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, k := range keys {
		if path.Base(k) == markerObject {
			continue
		}
		raw, ok, err := c.store.get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		if !ok {
			continue
		}
		key, r, err := decodeEntry(raw)
		if err != nil {
			log.WithError(err).Warnf("skipping cache object %s", k)
			continue
		}
		out = append(out, Record{Key: key, Response: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
