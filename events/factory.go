// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import (
	"context"
	"strings"

	"github.com/coreserve/gridd/cmn/cos"
	kgo "github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"
)

// shardSeparator splits one connection string into the per-shard
// tokens a Fanout is built from.
const shardSeparator = ","

// BeanstalkDialer dials a beanstalkd endpoint. The beanstalkd client
// library itself is an external collaborator this module never
// vendors; callers that want beanstalkd backends supply a dialer
// wrapping their driver of choice (e.g. beanstalkd/go-beanstalk).
type BeanstalkDialer func(addr string) (BeanstalkdClient, error)

// KafkaDialer builds a franz-go client for the given brokers/topic.
// Both kafka queue variants share one client per topic; Factory.KafkaSync
// picks which Queue wraps it.
type KafkaDialer func(brokers []string, topic string) (*kgo.Client, error)

// Factory builds Queue values from connection strings. Zero-value
// Factory has no dialers configured: leaf construction for a scheme
// with no dialer fails with an INTERNAL_ERROR rather than silently
// skipping it, since a misconfigured factory should be loud.
type Factory struct {
	DialBeanstalk BeanstalkDialer
	DialKafka     KafkaDialer
	KafkaSync     bool // true picks KafkaSyncQueue over KafkaAsyncQueue for kafka:// leaves
	Fallback      FallbackSink
}

// New parses connString and builds the Queue it describes. A string
// containing the shard separator becomes a Fanout over one sub-queue
// per token; otherwise it is parsed as a single backend URI. On
// partial fanout-construction failure, every sub-queue that did get
// built is destroyed before the error returns.
func (f *Factory) New(connString string) (Queue, error) {
	connString = strings.TrimSpace(connString)
	if connString == "" {
		return nil, cos.NewGridErr(cos.StatusBadRequest, "empty connection string")
	}
	if strings.Contains(connString, shardSeparator) {
		return f.newFanout(connString)
	}
	return f.newLeaf(connString)
}

func (f *Factory) newFanout(connString string) (Queue, error) {
	tokens := strings.Split(connString, shardSeparator)
	children := make([]Queue, len(tokens))

	var errs cos.Errs
	g, _ := errgroup.WithContext(context.Background())
	for i, tok := range tokens {
		i, tok := i, strings.TrimSpace(tok)
		g.Go(func() error {
			if tok == "" {
				errs.Add(cos.NewGridErr(cos.StatusBadRequest, "empty connection string"))
				return nil
			}
			q, err := f.newLeaf(tok)
			if err != nil {
				errs.Add(err)
				return nil
			}
			children[i] = q
			return nil
		})
	}
	g.Wait()

	if errs.Cnt() > 0 {
		for _, c := range children {
			if c != nil {
				c.Destroy()
			}
		}
		_, joined := errs.JoinErr()
		return nil, joined
	}
	return NewFanout(children), nil
}

func (f *Factory) newLeaf(connString string) (Queue, error) {
	switch {
	case strings.HasPrefix(connString, "beanstalk://"):
		return f.newBeanstalk(strings.TrimPrefix(connString, "beanstalk://"))
	case strings.HasPrefix(connString, "kafka://"):
		return f.newKafka(strings.TrimPrefix(connString, "kafka://"))
	default:
		return nil, cos.NewGridErr(cos.StatusBadRequest, "unrecognized connection string: %s", connString)
	}
}

func (f *Factory) newBeanstalk(addr string) (Queue, error) {
	if f.DialBeanstalk == nil {
		return nil, cos.NewGridErr(cos.StatusInternalError, "no beanstalkd dialer configured")
	}
	client, err := f.DialBeanstalk(addr)
	if err != nil {
		return nil, err
	}
	return NewBeanstalkdQueue(addr, client, f.Fallback), nil
}

// newKafka expects "<broker1;broker2;...>/<topic>".
func (f *Factory) newKafka(rest string) (Queue, error) {
	brokersPart, topic, ok := splitLast(rest, "/")
	if !ok || topic == "" {
		return nil, cos.NewGridErr(cos.StatusBadRequest, "kafka connection string missing topic: kafka://%s", rest)
	}
	if f.DialKafka == nil {
		return nil, cos.NewGridErr(cos.StatusInternalError, "no kafka dialer configured")
	}
	brokers := strings.Split(brokersPart, ";")
	client, err := f.DialKafka(brokers, topic)
	if err != nil {
		return nil, err
	}
	if f.KafkaSync {
		return NewKafkaSyncQueue(topic, client, f.Fallback), nil
	}
	return NewKafkaAsyncQueue(topic, client, f.Fallback), nil
}

func splitLast(s, sep string) (before, after string, ok bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}
