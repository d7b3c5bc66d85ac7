// Package metatype maps object type names to the schema of their meta tables.
//
// A Registry is created once at startup and populated through plugins:
//
//	types, err := metatype.NewRegistry(metatype.Config{Prefix: "wp_"})
//	if err != nil {
//		return err
//	}
//	if err := types.Bootstrap(metatype.DefaultPlugins()...); err != nil {
//		return err
//	}
//
//	post, err := types.Lookup("post")
//
// Every Descriptor has all four column roles resolved. Field names supplied
// by callers (orderby, search columns) go through Descriptor.Resolve so only
// registered identifiers ever reach generated SQL.
package metatype
