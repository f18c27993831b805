package rsrc

import (
	"fmt"

	"github.com/malt3/peicon/pkg/iconerr"
)

// maxWalkEntries bounds the number of entries Walk visits.
const maxWalkEntries = 1 << 16

// First returns the data of the first name and first language under typeID.
func (w *Walker) First(typeID uint32) ([]byte, error) {
	typeEntry, err := w.typeEntry(typeID)
	if err != nil {
		return nil, err
	}
	names, err := w.ReadDirectory(w.abs(typeEntry), LevelName)
	if err != nil {
		return nil, err
	}
	if len(names.Entries) == 0 {
		return nil, fmt.Errorf("%w: empty directory for type %d", iconerr.ErrResourceNotFound, typeID)
	}
	first := names.Entries[0]
	if !first.IsDir {
		return nil, fmt.Errorf("%w: first entry of type %d is not a directory", iconerr.ErrFormat, typeID)
	}
	return w.languageData(first, typeID)
}

// Lookup returns the data of the first language of resource resID under typeID.
func (w *Walker) Lookup(typeID, resID uint32) ([]byte, error) {
	typeEntry, err := w.typeEntry(typeID)
	if err != nil {
		return nil, err
	}
	names, err := w.ReadDirectory(w.abs(typeEntry), LevelName)
	if err != nil {
		return nil, err
	}
	entry, ok := names.Find(resID)
	if !ok {
		return nil, fmt.Errorf("%w: no resource %d of type %d", iconerr.ErrResourceNotFound, resID, typeID)
	}
	return w.languageData(entry, typeID)
}

func (w *Walker) typeEntry(typeID uint32) (Entry, error) {
	root, err := w.Root()
	if err != nil {
		return Entry{}, err
	}
	e, ok := root.Find(typeID)
	if !ok {
		return Entry{}, fmt.Errorf("%w: no resources of type %d", iconerr.ErrResourceNotFound, typeID)
	}
	return e, nil
}

func (w *Walker) languageData(nameEntry Entry, typeID uint32) ([]byte, error) {
	langs, err := w.ReadDirectory(w.abs(nameEntry), LevelLanguage)
	if err != nil {
		return nil, err
	}
	if len(langs.Entries) == 0 {
		return nil, fmt.Errorf("%w: no language entry for resource %d of type %d", iconerr.ErrResourceNotFound, nameEntry.ID, typeID)
	}
	lang := langs.Entries[0]
	if lang.IsDir {
		return nil, fmt.Errorf("%w: resource directory nested beyond %s level", iconerr.ErrFormat, LevelLanguage)
	}
	return w.ReadData(w.abs(lang))
}

// Leaf identifies one resource found by Walk.
type Leaf struct {
	Type Entry
	Name Entry
	Lang Entry
	Data DataEntry
}

// Walk calls fn for every leaf of the tree in stored order until fn returns false.
// Named entries are reported with their string offset; the strings are not read.
func (w *Walker) Walk(fn func(Leaf) bool) error {
	visited := 0
	visit := func(d *Directory) error {
		visited += len(d.Entries)
		if visited > maxWalkEntries {
			return fmt.Errorf("%w: resource tree has more than %d entries", iconerr.ErrFormat, maxWalkEntries)
		}
		return nil
	}

	root, err := w.Root()
	if err != nil {
		return err
	}
	if err := visit(root); err != nil {
		return err
	}
	for _, t := range root.Entries {
		if !t.IsDir {
			continue
		}
		names, err := w.ReadDirectory(w.abs(t), LevelName)
		if err != nil {
			return err
		}
		if err := visit(names); err != nil {
			return err
		}
		for _, n := range names.Entries {
			if !n.IsDir {
				continue
			}
			langs, err := w.ReadDirectory(w.abs(n), LevelLanguage)
			if err != nil {
				return err
			}
			if err := visit(langs); err != nil {
				return err
			}
			for _, l := range langs.Entries {
				if l.IsDir {
					return fmt.Errorf("%w: resource directory nested beyond %s level", iconerr.ErrFormat, LevelLanguage)
				}
				de, err := w.ReadDataEntry(w.abs(l))
				if err != nil {
					return err
				}
				if !fn(Leaf{Type: t, Name: n, Lang: l, Data: de}) {
					return nil
				}
			}
		}
	}
	return nil
}
