//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package replay_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fogfish/gamesession/internal/events"
	"github.com/fogfish/gamesession/internal/replay"
	"github.com/fogfish/it/v2"
	"github.com/fogfish/stream"
	"github.com/klauspost/compress/gzip"
)

type mock struct {
	batches [][]types.PutEventsRequestEntry
	failAt  int
}

func (m *mock) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.batches = append(m.batches, params.Entries)
	if m.failAt == len(m.batches) {
		return &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
			},
		}, nil
	}

	return &eventbridge.PutEventsOutput{}, nil
}

// S3 bucket with flat key space
type bucket struct {
	stream.S3
	objects map[string]string
	lists   int
}

func (m *bucket) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.lists++

	keys := make([]string, 0)
	for key := range m.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	seq := make([]s3types.Object, len(keys))
	for i, key := range keys {
		seq[i] = s3types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(m.objects[key])))}
	}

	return &s3.ListObjectsV2Output{Contents: seq, KeyCount: aws.Int32(int32(len(seq)))}, nil
}

func (m *bucket) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	val, has := m.objects[aws.ToString(params.Key)]
	if !has {
		return nil, &s3types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(val)),
		ContentLength: aws.Int64(int64(len(val))),
	}, nil
}

func eventsBucket(n int) *bucket {
	objects := map[string]string{
		"events/":              "",
		"events/nested/x.json": `{"Source":"nested"}`,
		"other/y.json":         `{"Source":"other"}`,
	}
	for i := 0; i < n; i++ {
		objects[fmt.Sprintf("events/event-%02d.json", i)] = fmt.Sprintf(`{"Source":"s3","Detail":"{\"seq\":%d}"}`, i)
	}

	return &bucket{objects: objects}
}

// HTTP transport answering every request with the given status
type status int

func (code status) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: int(code),
		Header:     http.Header{"Content-Type": []string{"application/x-amz-json-1.1"}},
		Body:       io.NopCloser(strings.NewReader(`{"Entries":[{"EventId":"1"}],"FailedEntryCount":0}`)),
		Request:    req,
	}, nil
}

func eventsDir(t *testing.T, n int) string {
	t.Helper()

	dir := t.TempDir()
	for i := 0; i < n; i++ {
		file := filepath.Join(dir, fmt.Sprintf("event-%02d.json", i))
		body := fmt.Sprintf(`{"Source":"test","DetailType":"game-session-request","Detail":"{\"seq\":%d}"}`, i)
		if err := os.WriteFile(file, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}

func TestCountFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"a.json":          {Data: []byte(`{}`)},
		"b.json":          {Data: []byte(`{}`)},
		"nested/c.json":   {Data: []byte(`{}`)},
		"nested/d/e.json": {Data: []byte(`{}`)},
	}

	n, err := replay.CountFiles(fsys, ".")
	it.Then(t).Should(
		it.Nil(err),
		it.Equal(n, 2),
	)

	n, err = replay.CountFiles(fsys, "nested")
	it.Then(t).Should(
		it.Nil(err),
		it.Equal(n, 1),
	)

	_, err = replay.CountFiles(fsys, "unknown")
	it.Then(t).ShouldNot(it.Nil(err))
}

func TestLoadBatch(t *testing.T) {
	t.Run("Projection", func(t *testing.T) {
		fsys := fstest.MapFS{
			"a.json": {Data: []byte(`{
				"Source": "game",
				"Resources": ["arn:aws:gamelift:a"],
				"DetailType": "game-session-request",
				"Detail": "{\"gameSessionRequestEvents\":[]}",
				"EventBusName": "other",
				"Time": "2024-01-01T00:00:00Z"
			}`)},
			"b.json": {Data: []byte(`{"DetailType": "x", "Unknown": 1}`)},
		}

		seq, err := replay.LoadBatch(fsys, ".", 0, 10)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(len(seq), 2),
			it.Equal(seq[0].Source, "game"),
			it.Equiv(seq[0].Resources, []string{"arn:aws:gamelift:a"}),
			it.Equal(seq[0].DetailType, "game-session-request"),
			it.Equal(seq[0].Detail, `{"gameSessionRequestEvents":[]}`),
			it.Equal(seq[1].Source, ""),
			it.Equal(len(seq[1].Resources), 0),
			it.Equal(seq[1].DetailType, "x"),
			it.Equal(seq[1].Detail, ""),
		)
	})

	t.Run("InlineDetail", func(t *testing.T) {
		fsys := fstest.MapFS{
			"a.json": {Data: []byte(`{"Detail": { "hostname" : "host-1" }}`)},
		}

		seq, err := replay.LoadBatch(fsys, ".", 0, 10)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(seq[0].Detail, `{"hostname":"host-1"}`),
		)
	})

	t.Run("Gzip", func(t *testing.T) {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		w.Write([]byte(`{"Source":"game","DetailType":"x"}`))
		w.Close()

		fsys := fstest.MapFS{
			"a.json.gz": {Data: buf.Bytes()},
		}

		seq, err := replay.LoadBatch(fsys, ".", 0, 10)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(seq[0].Source, "game"),
			it.Equal(seq[0].DetailType, "x"),
		)
	})

	t.Run("SortedByName", func(t *testing.T) {
		dir := eventsDir(t, 23)

		seq, err := replay.LoadBatch(os.DirFS(dir), ".", 20, 10)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(len(seq), 3),
			it.Equal(seq[0].Detail, `{"seq":20}`),
			it.Equal(seq[2].Detail, `{"seq":22}`),
		)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		dir := eventsDir(t, 3)

		seq, err := replay.LoadBatch(os.DirFS(dir), ".", 10, 10)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(len(seq), 0),
		)
	})

	t.Run("Malformed", func(t *testing.T) {
		fsys := fstest.MapFS{
			"a.json": {Data: []byte(`{"Source":`)},
		}

		_, err := replay.LoadBatch(fsys, ".", 0, 10)
		it.Then(t).ShouldNot(it.Nil(err))
	})
}

func TestSendBatch(t *testing.T) {
	t.Run("Entries", func(t *testing.T) {
		api := &mock{}
		fsys := os.DirFS(eventsDir(t, 2))
		seq, _ := replay.LoadBatch(fsys, ".", 0, 10)

		err := replay.SendBatch(context.Background(), api, "bus", seq)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(len(api.batches), 1),
			it.Equal(aws.ToString(api.batches[0][0].EventBusName), "bus"),
			it.Equal(aws.ToString(api.batches[0][0].Source), "test"),
			it.Equal(aws.ToString(api.batches[0][1].Detail), `{"seq":1}`),
		)
	})

	t.Run("FailedEntry", func(t *testing.T) {
		api := &mock{failAt: 1}
		fsys := os.DirFS(eventsDir(t, 1))
		seq, _ := replay.LoadBatch(fsys, ".", 0, 10)

		err := replay.SendBatch(context.Background(), api, "bus", seq)
		it.Then(t).ShouldNot(it.Nil(err))
	})

	t.Run("HttpStatus", func(t *testing.T) {
		seq := []events.Entry{{Source: "test", DetailType: "x", Detail: "{}"}}

		for code, ok := range map[status]bool{200: true, 202: false} {
			api := eventbridge.New(eventbridge.Options{
				Region:      "us-east-1",
				Credentials: aws.AnonymousCredentials{},
				HTTPClient:  code,
			})

			err := replay.SendBatch(context.Background(), api, "bus", seq)
			if ok {
				it.Then(t).Should(it.Nil(err))
			} else {
				it.Then(t).ShouldNot(it.Nil(err))
			}
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		api := &mock{}
		fsys := os.DirFS(eventsDir(t, 11))
		seq, _ := replay.LoadBatch(fsys, ".", 0, 11)

		err := replay.SendBatch(context.Background(), api, "bus", seq)
		it.Then(t).ShouldNot(it.Nil(err))
		it.Then(t).Should(it.Equal(len(api.batches), 0))
	})
}

func TestPutEvents(t *testing.T) {
	t.Run("Batches", func(t *testing.T) {
		api := &mock{}
		dir := eventsDir(t, 23)
		os.Mkdir(filepath.Join(dir, "nested"), 0755)
		os.WriteFile(filepath.Join(dir, "nested", "x.json"), []byte(`{}`), 0644)

		err := replay.New(api, "bus").PutEvents(context.Background(), os.DirFS(dir), ".")
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(len(api.batches), 3),
			it.Equal(len(api.batches[0]), 10),
			it.Equal(len(api.batches[1]), 10),
			it.Equal(len(api.batches[2]), 3),
		)

		seen := map[string]int{}
		for _, batch := range api.batches {
			for _, e := range batch {
				seen[aws.ToString(e.Detail)]++
			}
		}
		it.Then(t).Should(it.Equal(len(seen), 23))
		for _, n := range seen {
			it.Then(t).Should(it.Equal(n, 1))
		}
	})

	t.Run("StopOnFailure", func(t *testing.T) {
		api := &mock{failAt: 2}
		dir := eventsDir(t, 35)

		err := replay.New(api, "bus").PutEvents(context.Background(), os.DirFS(dir), ".")
		it.Then(t).ShouldNot(it.Nil(err))
		it.Then(t).Should(it.Equal(len(api.batches), 2))
	})

	t.Run("Empty", func(t *testing.T) {
		api := &mock{}

		err := replay.New(api, "bus").PutEvents(context.Background(), os.DirFS(t.TempDir()), ".")
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(len(api.batches), 0),
		)
	})
}

func TestSource(t *testing.T) {
	dir := eventsDir(t, 3)

	fsys, root, err := replay.Source(dir)
	it.Then(t).Should(
		it.Nil(err),
		it.Equal(root, "."),
	)

	n, err := replay.CountFiles(fsys, root)
	it.Then(t).Should(
		it.Nil(err),
		it.Equal(n, 3),
	)
}

func TestSourceS3(t *testing.T) {
	t.Run("DirectChildrenOnly", func(t *testing.T) {
		api := eventsBucket(3)

		fsys, dir, err := replay.Source("s3://events-bucket/events", stream.WithS3(api))
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(dir, "/events/"),
		)

		n, err := replay.CountFiles(fsys, dir)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(n, 3),
		)

		seq, err := replay.LoadBatch(fsys, dir, 0, 10)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(len(seq), 3),
			it.Equal(seq[0].Detail, `{"seq":0}`),
			it.Equal(seq[2].Detail, `{"seq":2}`),
		)
		for _, evt := range seq {
			it.Then(t).Should(it.Equal(evt.Source, "s3"))
		}
	})

	t.Run("ListedOnce", func(t *testing.T) {
		api := eventsBucket(23)
		eb := &mock{}

		fsys, dir, err := replay.Source("s3://events-bucket/events/", stream.WithS3(api))
		it.Then(t).Should(it.Nil(err))

		err = replay.New(eb, "bus").PutEvents(context.Background(), fsys, dir)
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(api.lists, 1),
			it.Equal(len(eb.batches), 3),
			it.Equal(len(eb.batches[2]), 3),
		)
	})
}
