// MIT License
//
// Copyright (c) 2023-2026 Mosaic Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/log"
	"github.com/hostmosaic/mosaic/typesystem"
)

// stubTypeSystem answers ancestry queries from a fixed parent map.
type stubTypeSystem struct {
	mu      sync.Mutex
	parents map[string]string
	schemas map[string]typesystem.Schema
	err     error
}

func newStubTypeSystem() *stubTypeSystem {
	return &stubTypeSystem{
		parents: make(map[string]string),
		schemas: make(map[string]typesystem.Schema),
	}
}

func (s *stubTypeSystem) RegisterSchema(schema typesystem.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[schema.TypeID] = schema
	return nil
}

func (s *stubTypeSystem) GetSchema(typeID string) (typesystem.Schema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schema, ok := s.schemas[typeID]
	return schema, ok
}

func (s *stubTypeSystem) Register(typesystem.Instance) error {
	return s.err
}

func (s *stubTypeSystem) ValidateInstance(string) (typesystem.Result, error) {
	return typesystem.Result{Valid: true}, s.err
}

func (s *stubTypeSystem) IsTypeOf(typeID, baseTypeID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for current := typeID; current != ""; current = s.parents[current] {
		if current == baseTypeID {
			return true, nil
		}
	}
	return false, nil
}

func newTestManager() *manager {
	return newManager(typesystem.Noop(), log.DiscardLogger)
}

func TestRegisterEntry(t *testing.T) {
	manager := newTestManager()
	require.NoError(t, manager.registerEntry(widgetEntry("widget")))

	err := manager.registerEntry(widgetEntry("widget"))
	assert.ErrorIs(t, err, merrors.ErrEntryAlreadyRegistered)

	err = manager.registerEntry(&Entry{Type: testEntryType})
	assert.Error(t, err)
}

func TestRegisterDomain(t *testing.T) {
	manager := newTestManager()
	require.NoError(t, manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))

	err := manager.registerDomain(toggleDomain("sidebar"), new(staticContainers))
	require.Error(t, err)
	assert.ErrorIs(t, err, merrors.ErrDomainAlreadyRegistered)

	var validationErr *merrors.DomainValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "sidebar", validationErr.DomainID)
}

func TestRegisterDomainRejectsUnsupportedOwnStage(t *testing.T) {
	manager := newTestManager()
	domain := toggleDomain("sidebar")
	domain.LifecycleHooks = []LifecycleHook{
		{Stage: "resumed", Chain: &ActionsChain{Action: Action{Type: "ping", Target: "sidebar"}}},
	}
	err := manager.registerDomain(domain, new(staticContainers))
	assert.ErrorIs(t, err, merrors.ErrStageNotSupported)
}

func TestRegisterExtension(t *testing.T) {
	manager := newTestManager()
	require.NoError(t, manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))
	require.NoError(t, manager.registerEntry(widgetEntry("widget")))

	state, err := manager.registerExtension(widgetExtension("e1", "sidebar", "widget"))
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, LoadIdle, state.LoadState())
	assert.Equal(t, Unmounted, state.MountState())

	_, err = manager.registerExtension(widgetExtension("e1", "sidebar", "widget"))
	assert.ErrorIs(t, err, merrors.ErrExtensionAlreadyRegistered)

	_, err = manager.registerExtension(widgetExtension("e2", "nowhere", "widget"))
	assert.ErrorIs(t, err, merrors.ErrDomainNotRegistered)

	_, err = manager.registerExtension(widgetExtension("e3", "sidebar", "unknown"))
	assert.ErrorIs(t, err, merrors.ErrEntryNotRegistered)
}

func TestRegisterExtensionRejectsUnsupportedStage(t *testing.T) {
	manager := newTestManager()
	require.NoError(t, manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))
	require.NoError(t, manager.registerEntry(widgetEntry("widget")))

	extension := widgetExtension("e1", "sidebar", "widget")
	extension.LifecycleHooks = []LifecycleHook{
		{Stage: "resumed", Chain: &ActionsChain{Action: Action{Type: "ping", Target: "sidebar"}}},
	}
	_, err := manager.registerExtension(extension)
	assert.ErrorIs(t, err, merrors.ErrStageNotSupported)
}

func TestContractViolationsAreCollected(t *testing.T) {
	manager := newTestManager()
	domain := &Domain{
		ID:                "sidebar",
		Actions:           []string{ActionMount, ActionUnmount, "focus", "blur"},
		ExtensionsActions: []string{"notify"},
		SharedProperties:  []string{"theme"},
	}
	require.NoError(t, manager.registerDomain(domain, new(staticContainers)))

	entry := &Entry{
		ID:                 "widget",
		Type:               testEntryType,
		RequiredProperties: []string{"theme", "locale", "zoom"},
		EmittedActions:     []string{"notify", "dismiss"},
		DomainActions:      []string{"focus"},
	}
	require.NoError(t, manager.registerEntry(entry))

	_, err := manager.registerExtension(widgetExtension("e1", "sidebar", "widget"))
	require.Error(t, err)

	var contractErr *merrors.ContractValidationError
	require.ErrorAs(t, err, &contractErr)
	// locale+zoom undeclared, dismiss not accepted, blur not handled
	require.Len(t, contractErr.Violations, 4)

	byRule := make(map[merrors.ContractRule][]string)
	for _, violation := range contractErr.Violations {
		byRule[violation.Rule] = append(byRule[violation.Rule], violation.Subject)
	}
	assert.ElementsMatch(t, []string{"locale", "zoom"}, byRule[merrors.RuleRequiredProperties])
	assert.ElementsMatch(t, []string{"dismiss"}, byRule[merrors.RuleEmittedActions])
	assert.ElementsMatch(t, []string{"blur"}, byRule[merrors.RuleDomainActions])
}

func TestTypeAncestryCheck(t *testing.T) {
	plugin := newStubTypeSystem()
	plugin.parents["panel.weather"] = "panel"
	manager := newManager(plugin, log.DiscardLogger)

	domain := toggleDomain("sidebar")
	domain.RequiredExtensionType = "panel"
	require.NoError(t, manager.registerDomain(domain, new(staticContainers)))
	require.NoError(t, manager.registerEntry(widgetEntry("widget")))

	descendant := widgetExtension("e1", "sidebar", "widget")
	descendant.Type = "panel.weather"
	_, err := manager.registerExtension(descendant)
	require.NoError(t, err)

	stranger := widgetExtension("e2", "sidebar", "widget")
	stranger.Type = "toolbar.button"
	_, err = manager.registerExtension(stranger)
	require.Error(t, err)

	var typeErr *merrors.ExtensionTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "toolbar.button", typeErr.TypeID)
	assert.Equal(t, "panel", typeErr.RequiredType)
}

func TestPackageTracking(t *testing.T) {
	manager := newTestManager()
	require.NoError(t, manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))
	require.NoError(t, manager.registerEntry(widgetEntry("widget")))

	for _, id := range []string{"widget/acme.weather.today", "widget/acme.weather.weekly", "widget/acme.clock.main"} {
		_, err := manager.registerExtension(widgetExtension(id, "sidebar", "widget"))
		require.NoError(t, err)
	}
	// no instance suffix, no package
	_, err := manager.registerExtension(widgetExtension("e1", "sidebar", "widget"))
	require.NoError(t, err)

	assert.Equal(t, []string{"acme.clock", "acme.weather"}, manager.registeredPackages())
	assert.Equal(t,
		[]string{"widget/acme.weather.today", "widget/acme.weather.weekly"},
		manager.extensionsForPackage("acme.weather"))

	manager.removeExtension("widget/acme.clock.main")
	assert.Equal(t, []string{"acme.weather"}, manager.registeredPackages())
	assert.Nil(t, manager.extensionsForPackage("acme.clock"))
}

func TestMalformedExtensionIDRejected(t *testing.T) {
	manager := newTestManager()
	require.NoError(t, manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))
	require.NoError(t, manager.registerEntry(widgetEntry("widget")))

	_, err := manager.registerExtension(widgetExtension("widget/acme", "sidebar", "widget"))
	assert.ErrorIs(t, err, merrors.ErrMalformedExtensionID)
}

func TestSharedProperties(t *testing.T) {
	manager := newTestManager()
	require.NoError(t, manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))

	err := manager.updateProperty("sidebar", "unknown", 1)
	assert.ErrorIs(t, err, merrors.ErrPropertyNotDeclared)

	err = manager.updateProperty("nowhere", "theme", "dark")
	assert.ErrorIs(t, err, merrors.ErrDomainNotRegistered)

	var seen []string
	subscription, err := manager.subscribeProperty("sidebar", "theme", func(propertyID string, value any) {
		seen = append(seen, propertyID+"="+value.(string))
	})
	require.NoError(t, err)

	var wildcard []string
	_, err = manager.subscribeProperty("sidebar", PropertyWildcard, func(propertyID string, value any) {
		wildcard = append(wildcard, propertyID)
	})
	require.NoError(t, err)

	require.NoError(t, manager.updateProperty("sidebar", "theme", "dark"))
	require.NoError(t, manager.updateProperty("sidebar", "locale", "fr"))

	assert.Equal(t, []string{"theme=dark"}, seen)
	assert.Equal(t, []string{"theme", "locale"}, wildcard)

	value, found, err := manager.property("sidebar", "theme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "dark", value)

	_, found, err = manager.property("sidebar", "zoom")
	require.NoError(t, err)
	assert.False(t, found)

	manager.unsubscribeProperty("sidebar", subscription)
	require.NoError(t, manager.updateProperty("sidebar", "theme", "light"))
	assert.Equal(t, []string{"theme=dark"}, seen)
}
