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
	"fmt"
	"slices"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/internal/syncmap"
	"github.com/hostmosaic/mosaic/log"
	"github.com/hostmosaic/mosaic/typesystem"
)

// PropertyWildcard subscribes to every shared property of a domain.
const PropertyWildcard = "*"

// Schema ids under which the runtime registers its own records with the
// type-system plugin.
const (
	// SchemaDomain is the type id claimed by domain records.
	SchemaDomain = "mosaic.domain"
	// SchemaExtension is the type id claimed by extension records.
	SchemaExtension = "mosaic.extension"
)

// PropertySubscriber observes shared-property updates.
type PropertySubscriber func(propertyID string, value any)

// propertySubscription is one registered subscriber on one domain.
type propertySubscription struct {
	id         string
	propertyID string
	fn         PropertySubscriber
}

// domainState owns the registration state of one domain: its shared-property
// values, its subscribers and the registration order of its extensions.
type domainState struct {
	domain     *Domain
	containers ContainerProvider
	declared   mapset.Set[string]

	mu          sync.RWMutex
	order       []string
	properties  map[string]any
	subscribers map[string][]*propertySubscription
}

func newDomainState(domain *Domain, containers ContainerProvider) *domainState {
	return &domainState{
		domain:      domain,
		containers:  containers,
		declared:    mapset.NewSet(domain.SharedProperties...),
		order:       make([]string, 0),
		properties:  make(map[string]any),
		subscribers: make(map[string][]*propertySubscription),
	}
}

func (d *domainState) extensionOrder() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.order)
}

func (d *domainState) appendExtension(extensionID string) {
	d.mu.Lock()
	d.order = append(d.order, extensionID)
	d.mu.Unlock()
}

func (d *domainState) removeExtension(extensionID string) {
	d.mu.Lock()
	d.order = slices.DeleteFunc(d.order, func(id string) bool { return id == extensionID })
	d.mu.Unlock()
}

func (d *domainState) property(propertyID string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	value, ok := d.properties[propertyID]
	return value, ok
}

func (d *domainState) subscribe(propertyID string, fn PropertySubscriber) *propertySubscription {
	subscription := &propertySubscription{
		id:         uuid.NewString(),
		propertyID: propertyID,
		fn:         fn,
	}
	d.mu.Lock()
	d.subscribers[propertyID] = append(d.subscribers[propertyID], subscription)
	d.mu.Unlock()
	return subscription
}

func (d *domainState) unsubscribe(subscription *propertySubscription) {
	d.mu.Lock()
	list := d.subscribers[subscription.propertyID]
	list = slices.DeleteFunc(list, func(s *propertySubscription) bool { return s.id == subscription.id })
	if len(list) == 0 {
		delete(d.subscribers, subscription.propertyID)
	} else {
		d.subscribers[subscription.propertyID] = list
	}
	d.mu.Unlock()
}

// setProperty stores the value and returns the subscribers to notify. The
// notification itself happens outside the lock so subscribers may re-enter
// the domain state.
func (d *domainState) setProperty(propertyID string, value any) []*propertySubscription {
	d.mu.Lock()
	d.properties[propertyID] = value
	notify := make([]*propertySubscription, 0, len(d.subscribers[propertyID])+len(d.subscribers[PropertyWildcard]))
	notify = append(notify, d.subscribers[propertyID]...)
	notify = append(notify, d.subscribers[PropertyWildcard]...)
	d.mu.Unlock()
	return notify
}

// manager owns registration state for domains, entries and extensions,
// validates contracts and stores shared properties.
type manager struct {
	logger     log.Logger
	typeSystem typesystem.Plugin
	domains    *syncmap.SyncMap[string, *domainState]
	extensions *syncmap.SyncMap[string, *ExtensionState]
	entries    *syncmap.SyncMap[string, *Entry]
	packages   *syncmap.SyncMap[string, mapset.Set[string]]
}

func newManager(typeSystem typesystem.Plugin, logger log.Logger) *manager {
	return &manager{
		logger:     logger,
		typeSystem: typeSystem,
		domains:    syncmap.New[string, *domainState](),
		extensions: syncmap.New[string, *ExtensionState](),
		entries:    syncmap.New[string, *Entry](),
		packages:   syncmap.New[string, mapset.Set[string]](),
	}
}

func (m *manager) registerEntry(entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if _, exists := m.entries.Get(entry.ID); exists {
		return fmt.Errorf("entry=(%s): %w", entry.ID, merrors.ErrEntryAlreadyRegistered)
	}
	m.entries.Set(entry.ID, entry)
	return nil
}

func (m *manager) entry(entryID string) (*Entry, bool) {
	return m.entries.Get(entryID)
}

func (m *manager) registerDomain(domain *Domain, containers ContainerProvider) error {
	if err := domain.Validate(); err != nil {
		return &merrors.DomainValidationError{DomainID: domain.ID, Cause: err}
	}
	if _, exists := m.domains.Get(domain.ID); exists {
		return &merrors.DomainValidationError{DomainID: domain.ID, Cause: merrors.ErrDomainAlreadyRegistered}
	}
	for _, hook := range domain.LifecycleHooks {
		if !domain.SupportsOwnStage(hook.Stage) {
			return &merrors.DomainValidationError{
				DomainID: domain.ID,
				Cause:    fmt.Errorf("stage=(%s): %w", hook.Stage, merrors.ErrStageNotSupported),
			}
		}
	}
	if err := m.validateRecord(domain.ID, SchemaDomain, domain); err != nil {
		return &merrors.DomainValidationError{DomainID: domain.ID, Cause: err}
	}
	m.domains.Set(domain.ID, newDomainState(domain, containers))
	return nil
}

func (m *manager) registerExtension(extension *Extension) (*ExtensionState, error) {
	if err := extension.Validate(); err != nil {
		return nil, &merrors.ExtensionValidationError{ExtensionID: extension.ID, Cause: err}
	}
	if _, exists := m.extensions.Get(extension.ID); exists {
		return nil, &merrors.ExtensionValidationError{ExtensionID: extension.ID, Cause: merrors.ErrExtensionAlreadyRegistered}
	}
	dstate, ok := m.domains.Get(extension.DomainID)
	if !ok {
		return nil, fmt.Errorf("domain=(%s): %w", extension.DomainID, merrors.ErrDomainNotRegistered)
	}
	entry, ok := m.entries.Get(extension.EntryID)
	if !ok {
		return nil, fmt.Errorf("entry=(%s): %w", extension.EntryID, merrors.ErrEntryNotRegistered)
	}
	for _, hook := range extension.LifecycleHooks {
		if !dstate.domain.SupportsExtensionStage(hook.Stage) {
			return nil, &merrors.ExtensionValidationError{
				ExtensionID: extension.ID,
				Cause:       fmt.Errorf("stage=(%s): %w", hook.Stage, merrors.ErrStageNotSupported),
			}
		}
	}
	if err := m.validateRecord(extension.ID, SchemaExtension, extension); err != nil {
		return nil, &merrors.ExtensionValidationError{ExtensionID: extension.ID, Cause: err}
	}
	if dstate.domain.UIMetadataSchema != "" && extension.Metadata != nil {
		if err := m.validateRecord(extension.ID+"#metadata", dstate.domain.UIMetadataSchema, extension.Metadata); err != nil {
			return nil, &merrors.ExtensionValidationError{ExtensionID: extension.ID, Cause: err}
		}
	}
	if err := m.validateContract(extension, entry, dstate.domain); err != nil {
		return nil, err
	}
	if err := m.validateTypeAncestry(extension, dstate.domain); err != nil {
		return nil, err
	}

	state := newExtensionState(extension, entry)
	m.extensions.Set(extension.ID, state)
	dstate.appendExtension(extension.ID)
	m.trackPackage(extension.ID)
	return state, nil
}

// removeExtension clears the extension's registration state. It does not
// unmount; the caller is responsible for the lifecycle side.
func (m *manager) removeExtension(extensionID string) {
	state, ok := m.extensions.Get(extensionID)
	if !ok {
		return
	}
	if dstate, ok := m.domains.Get(state.Extension().DomainID); ok {
		dstate.removeExtension(extensionID)
	}
	m.untrackPackage(extensionID)
	m.extensions.Delete(extensionID)
}

func (m *manager) removeDomain(domainID string) {
	m.domains.Delete(domainID)
}

// validateRecord registers the record with the type-system plugin and asks it
// to validate the instance. Any plugin failure is classified as a type
// resolution error.
func (m *manager) validateRecord(instanceID, typeID string, value any) error {
	if _, ok := m.typeSystem.GetSchema(typeID); !ok {
		// the host registered no schema for runtime records, nothing to check
		return nil
	}
	if err := m.typeSystem.Register(typesystem.Instance{ID: instanceID, TypeID: typeID, Value: value}); err != nil {
		return fmt.Errorf("%w: %v", merrors.ErrTypeResolution, err)
	}
	result, err := m.typeSystem.ValidateInstance(instanceID)
	if err != nil {
		return fmt.Errorf("%w: %v", merrors.ErrTypeResolution, err)
	}
	if !result.Valid {
		return fmt.Errorf("schema=(%s) rejected instance=(%s): %v", typeID, instanceID, result.Errors)
	}
	return nil
}

// validateContract checks the three subset rules between the entry contract
// and the domain, collecting one violation per offending element before
// failing.
func (m *manager) validateContract(extension *Extension, entry *Entry, domain *Domain) error {
	shared := mapset.NewSet(domain.SharedProperties...)
	accepted := mapset.NewSet(domain.ExtensionsActions...)
	handled := mapset.NewSet(entry.DomainActions...)

	var violations []*merrors.ContractViolation
	violation := func(rule merrors.ContractRule, subject string) {
		violations = append(violations, &merrors.ContractViolation{
			Rule:        rule,
			ExtensionID: extension.ID,
			EntryID:     entry.ID,
			DomainID:    domain.ID,
			Subject:     subject,
		})
	}

	for _, property := range entry.RequiredProperties {
		if !shared.Contains(property) {
			violation(merrors.RuleRequiredProperties, property)
		}
	}
	for _, action := range entry.EmittedActions {
		if !accepted.Contains(action) {
			violation(merrors.RuleEmittedActions, action)
		}
	}
	for _, action := range domain.Actions {
		if IsBuiltinAction(action) {
			continue
		}
		if !handled.Contains(action) {
			violation(merrors.RuleDomainActions, action)
		}
	}

	if len(violations) > 0 {
		return &merrors.ContractValidationError{ExtensionID: extension.ID, Violations: violations}
	}
	return nil
}

func (m *manager) validateTypeAncestry(extension *Extension, domain *Domain) error {
	if domain.RequiredExtensionType == "" {
		return nil
	}
	ok, err := m.typeSystem.IsTypeOf(extension.TypeID(), domain.RequiredExtensionType)
	if err != nil {
		return fmt.Errorf("%w: %v", merrors.ErrTypeResolution, err)
	}
	if !ok {
		return &merrors.ExtensionTypeError{
			ExtensionID:  extension.ID,
			TypeID:       extension.TypeID(),
			RequiredType: domain.RequiredExtensionType,
		}
	}
	return nil
}

func (m *manager) trackPackage(extensionID string) {
	packageID, err := PackageID(extensionID)
	if err != nil || packageID == "" {
		return
	}
	members, ok := m.packages.Get(packageID)
	if !ok {
		members = mapset.NewSet[string]()
		m.packages.Set(packageID, members)
	}
	members.Add(extensionID)
}

func (m *manager) untrackPackage(extensionID string) {
	packageID, err := PackageID(extensionID)
	if err != nil || packageID == "" {
		return
	}
	members, ok := m.packages.Get(packageID)
	if !ok {
		return
	}
	members.Remove(extensionID)
	if members.Cardinality() == 0 {
		m.packages.Delete(packageID)
	}
}

func (m *manager) domainState(domainID string) (*domainState, bool) {
	return m.domains.Get(domainID)
}

func (m *manager) extensionState(extensionID string) (*ExtensionState, bool) {
	return m.extensions.Get(extensionID)
}

func (m *manager) registeredPackages() []string {
	packages := m.packages.Keys()
	sort.Strings(packages)
	return packages
}

func (m *manager) extensionsForPackage(packageID string) []string {
	members, ok := m.packages.Get(packageID)
	if !ok {
		return nil
	}
	extensions := members.ToSlice()
	sort.Strings(extensions)
	return extensions
}

func (m *manager) updateProperty(domainID, propertyID string, value any) error {
	dstate, ok := m.domains.Get(domainID)
	if !ok {
		return fmt.Errorf("domain=(%s): %w", domainID, merrors.ErrDomainNotRegistered)
	}
	if !dstate.declared.Contains(propertyID) {
		return fmt.Errorf("domain=(%s) property=(%s): %w", domainID, propertyID, merrors.ErrPropertyNotDeclared)
	}
	for _, subscription := range dstate.setProperty(propertyID, value) {
		subscription.fn(propertyID, value)
	}
	return nil
}

func (m *manager) updateProperties(domainID string, values map[string]any) error {
	for propertyID, value := range values {
		if err := m.updateProperty(domainID, propertyID, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *manager) property(domainID, propertyID string) (any, bool, error) {
	dstate, ok := m.domains.Get(domainID)
	if !ok {
		return nil, false, fmt.Errorf("domain=(%s): %w", domainID, merrors.ErrDomainNotRegistered)
	}
	value, found := dstate.property(propertyID)
	return value, found, nil
}

func (m *manager) subscribeProperty(domainID, propertyID string, fn PropertySubscriber) (*propertySubscription, error) {
	dstate, ok := m.domains.Get(domainID)
	if !ok {
		return nil, fmt.Errorf("domain=(%s): %w", domainID, merrors.ErrDomainNotRegistered)
	}
	return dstate.subscribe(propertyID, fn), nil
}

func (m *manager) unsubscribeProperty(domainID string, subscription *propertySubscription) {
	if dstate, ok := m.domains.Get(domainID); ok {
		dstate.unsubscribe(subscription)
	}
}
