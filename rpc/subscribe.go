// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpc

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/filter"
)

// FeedManager is the subset of *feed.Manager used by the RPC server
type FeedManager interface {
	FeedNames() []string
	FieldsOf(name string) ([]string, bool)
	FiltersOf(name string) ([]string, bool)
	Subscribe(name string, opts feed.Options) (*feed.Subscriber, error)
	Unsubscribe(id string) bool
}

// parseSubscribe validates subscribe params and returns the feed name and options
func parseSubscribe(manager FeedManager, params any) (string, feed.Options, *Error) {
	if len(manager.FeedNames()) == 0 {
		return "", feed.Options{}, accountAccessError()
	}
	items, ok := params.([]any)
	if !ok || len(items) != 2 {
		return "", feed.Options{}, newError(
			CodeInvalidParams,
			"Subscribe RPC request params must be a list of length 2.",
		)
	}
	feedName, _ := items[0].(string)
	fields, ok := manager.FieldsOf(feedName)
	if !ok {
		unknownErr := &feed.UnknownFeedError{
			Name:      fmt.Sprint(items[0]),
			Available: manager.FeedNames(),
		}
		return "", feed.Options{}, newError(CodeInvalidParams, unknownErr.Error())
	}
	if _, ok := items[1].(map[string]any); !ok {
		return "", feed.Options{}, invalidOptionsError(items[1], fields)
	}
	opts, err := feed.ParseOptions(items[1])
	if err != nil {
		return "", feed.Options{}, invalidOptionsError(items[1], fields)
	}
	return feedName, opts, nil
}

// subscribeError maps a feed subscribe error to an RPC error
func subscribeError(
	manager FeedManager,
	feedName string,
	opts feed.Options,
	err error,
) *Error {
	var filterErr *filter.InvalidFilterError
	var optionsErr *feed.InvalidOptionsError
	var unknownErr *feed.UnknownFeedError
	var accessErr *feed.AccountAccessError
	switch {
	case errors.As(err, &filterErr):
		filters, _ := manager.FiltersOf(feedName)
		rpcErr := newError(
			CodeInvalidParams,
			fmt.Sprintf(
				"%v is not a valid set of filters. Valid format/filters: {\"include\": %q}.",
				opts.Filters,
				filters,
			),
		)
		rpcErr.Data = filterErr.Reason
		return rpcErr
	case errors.As(err, &optionsErr):
		fields, _ := manager.FieldsOf(feedName)
		rpcErr := invalidOptionsError(opts, fields)
		rpcErr.Data = optionsErr.Reason
		return rpcErr
	case errors.As(err, &unknownErr):
		return newError(CodeInvalidParams, unknownErr.Error())
	case errors.As(err, &accessErr):
		return accountAccessError()
	}
	return newError(CodeInternalError, err.Error())
}

func accountAccessError() *Error {
	return newError(
		CodeAccountIdError,
		"Account does not have access to the transaction streaming service.",
	)
}

func invalidOptionsError(options any, fields []string) *Error {
	return newError(
		CodeInvalidParams,
		fmt.Sprintf(
			"%v is not a valid set of options. Valid format/fields: {\"include\": %q}.",
			options,
			fields,
		),
	)
}

// parseUnsubscribe returns the subscription id from unsubscribe params
func parseUnsubscribe(params any) (string, *Error) {
	items, ok := params.([]any)
	if !ok || len(items) != 1 {
		return "", newError(
			CodeInvalidParams,
			"Unsubscribe RPC request params must be a list of length 1.",
		)
	}
	id, ok := items[0].(string)
	if !ok {
		return "", newError(
			CodeInvalidParams,
			"Subscription id must be a string.",
		)
	}
	return id, nil
}
